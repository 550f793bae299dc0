package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/pkg/codes"
	"github.com/cloudmarket/backend/pkg/config"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/phone"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
	"github.com/cloudmarket/backend/services/auth/internal/messenger"
	"github.com/cloudmarket/backend/services/auth/internal/repository"
)

type OTPService interface {
	// RequestOTP persists a fresh challenge and tries to deliver the code.
	// It succeeds once the challenge is stored, whatever happens to delivery.
	RequestOTP(ctx context.Context, phoneInput string) error
	VerifyOTP(ctx context.Context, phoneInput, code string) (*domain.LoginResult, error)
}

type otpService struct {
	otpRepo   repository.OTPRepository
	limiter   repository.RateLimitRepository
	directory accounts.Directory
	messenger messenger.Service
	issuer    *sessionIssuer
	cfg       config.OTPConfig
	now       func() time.Time
}

func NewOTPService(
	otpRepo repository.OTPRepository,
	limiter repository.RateLimitRepository,
	directory accounts.Directory,
	msg messenger.Service,
	signer *session.Signer,
	publisher events.Publisher,
	cfg config.OTPConfig,
) OTPService {
	return newOTPService(otpRepo, limiter, directory, msg, signer, publisher, cfg, time.Now)
}

func newOTPService(
	otpRepo repository.OTPRepository,
	limiter repository.RateLimitRepository,
	directory accounts.Directory,
	msg messenger.Service,
	signer *session.Signer,
	publisher events.Publisher,
	cfg config.OTPConfig,
	now func() time.Time,
) *otpService {
	return &otpService{
		otpRepo:   otpRepo,
		limiter:   limiter,
		directory: directory,
		messenger: msg,
		issuer:    &sessionIssuer{signer: signer, publisher: publisher, now: now},
		cfg:       cfg,
		now:       now,
	}
}

func (s *otpService) RequestOTP(ctx context.Context, phoneInput string) error {
	p, err := phone.Canonicalize(phoneInput)
	if err != nil {
		return ErrInvalidPhone
	}

	if err := s.checkLimit(ctx, "otp:request:"+p, s.cfg.RequestLimit); err != nil {
		return err
	}

	code, err := codes.NewNumeric(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now()
	challenge := &domain.Challenge{
		Phone:     p,
		CodeHash:  codes.Hash(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.otpRepo.Create(ctx, challenge); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	logger.InfoContext(ctx, "OTP challenge issued", "phone", phone.Mask(p), "challenge_id", challenge.ID)

	// The challenge is durable now. Delivery gets its own deadline so a slow
	// messenger or a client that hung up cannot undo it.
	deliveryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DeliveryTimeout)
	defer cancel()
	s.deliver(deliveryCtx, p, code)

	return nil
}

func (s *otpService) deliver(ctx context.Context, p, code string) {
	to := messenger.Recipient{Phone: p}

	acc, err := s.directory.FindByPhone(ctx, p)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up account for OTP delivery", "error", err, "phone", phone.Mask(p))
	}
	if acc != nil {
		to.ChatHandle = acc.ChatHandle()
	}

	if err := s.messenger.SendLoginCode(ctx, to, code, s.cfg.TTL); err != nil {
		if errors.Is(err, messenger.ErrNoChatHandle) {
			logger.WarnContext(ctx, "No linked chat for OTP delivery", "phone", phone.Mask(p))
			return
		}
		logger.ErrorContext(ctx, "Failed to deliver OTP", "error", err, "phone", phone.Mask(p))
	}
}

func (s *otpService) VerifyOTP(ctx context.Context, phoneInput, code string) (*domain.LoginResult, error) {
	p, err := phone.Canonicalize(phoneInput)
	if err != nil || code == "" {
		return nil, ErrInvalidPayload
	}

	if err := s.checkLimit(ctx, "otp:verify:"+p, s.cfg.VerifyLimit); err != nil {
		return nil, err
	}

	challenge, err := s.otpRepo.Latest(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	// Only the newest challenge is ever eligible. If it has been used, older
	// ones stay unusable too.
	if challenge == nil || challenge.Consumed {
		return nil, ErrCodeNotFound
	}

	if !codes.Matches(code, challenge.CodeHash) {
		return nil, ErrWrongCode
	}

	now := s.now()
	if challenge.Expired(now) {
		return nil, ErrCodeExpired
	}

	consumed, err := s.otpRepo.MarkConsumed(ctx, challenge.ID, now)
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "Failed to mark OTP consumed", "error", err, "challenge_id", challenge.ID)
	case !consumed:
		// A concurrent verification won the race for this challenge.
		return nil, ErrCodeNotFound
	}

	acc, err := s.directory.FindByPhone(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	provisioned := false
	if acc == nil {
		if !s.cfg.AutoProvision {
			logger.InfoContext(ctx, "OTP verified for phone without account", "phone", phone.Mask(p))
			return &domain.LoginResult{}, nil
		}
		if acc, err = s.directory.CreateWithPhone(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to provision account: %w", err)
		}
		provisioned = true
		logger.InfoContext(ctx, "Account provisioned from OTP", "account_id", acc.ID)
	}

	return s.issuer.issue(ctx, acc, events.LoginMethodOTP, provisioned)
}

func (s *otpService) checkLimit(ctx context.Context, key string, limit int) error {
	if s.limiter == nil || limit <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, key, limit, s.cfg.LimitWindow)
	if err != nil {
		// Fail open so a broken limiter store never locks users out.
		logger.WarnContext(ctx, "Rate limit check failed", "error", err)
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}
