package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/pkg/cache"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/pkg/telegram"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
)

type SessionService interface {
	LoginWithTelegram(ctx context.Context, fields map[string]string) (*domain.LoginResult, error)
	Profile(ctx context.Context, accountID int64) (*domain.AccountProfile, error)
}

type sessionService struct {
	directory  accounts.Directory
	cache      cache.Cache
	issuer     *sessionIssuer
	botToken   string
	loginAge   time.Duration
	profileTTL time.Duration
	now        func() time.Time
}

func NewSessionService(
	directory accounts.Directory,
	profileCache cache.Cache,
	signer *session.Signer,
	publisher events.Publisher,
	cfg *config.Config,
) SessionService {
	return &sessionService{
		directory:  directory,
		cache:      profileCache,
		issuer:     &sessionIssuer{signer: signer, publisher: publisher, now: time.Now},
		botToken:   cfg.Telegram.BotToken,
		loginAge:   cfg.Telegram.LoginMaxAge,
		profileTTL: cfg.Redis.ProfileTTL,
		now:        time.Now,
	}
}

func profileKey(accountID int64) string {
	return "profile:" + strconv.FormatInt(accountID, 10)
}

func (s *sessionService) LoginWithTelegram(ctx context.Context, fields map[string]string) (*domain.LoginResult, error) {
	user, err := telegram.VerifyLogin(fields, s.botToken, s.loginAge, s.now())
	switch {
	case errors.Is(err, telegram.ErrLoginExpired):
		return nil, ErrTelegramLoginExpired
	case errors.Is(err, telegram.ErrNoToken):
		return nil, fmt.Errorf("telegram login is not configured: %w", err)
	case err != nil:
		logger.WarnContext(ctx, "Rejected telegram login", "error", err)
		return nil, ErrInvalidTelegramLogin
	}

	acc, err := s.directory.UpsertTelegram(ctx, accounts.TelegramProfile{
		TelegramID: user.ID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		PhotoURL:   user.PhotoURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save telegram account: %w", err)
	}

	if err := s.cache.Delete(ctx, profileKey(acc.ID)); err != nil {
		logger.WarnContext(ctx, "Failed to invalidate profile cache", "error", err, "account_id", acc.ID)
	}

	return s.issuer.issue(ctx, acc, events.LoginMethodTelegram, false)
}

// Profile serves from cache and falls back to the directory on a miss or a
// cache error.
func (s *sessionService) Profile(ctx context.Context, accountID int64) (*domain.AccountProfile, error) {
	key := profileKey(accountID)

	var cached domain.AccountProfile
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.WarnContext(ctx, "Profile cache read failed", "error", err)
	}
	if hit {
		return &cached, nil
	}

	acc, err := s.directory.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}

	profile := domain.NewAccountProfile(acc)
	if err := s.cache.SetJSON(ctx, key, profile, s.profileTTL); err != nil {
		logger.WarnContext(ctx, "Profile cache write failed", "error", err)
	}
	return profile, nil
}
