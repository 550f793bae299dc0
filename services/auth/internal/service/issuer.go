package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/session"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
)

// sessionIssuer is the last step of every login path.
type sessionIssuer struct {
	signer    *session.Signer
	publisher events.Publisher
	now       func() time.Time
}

func (i *sessionIssuer) issue(ctx context.Context, acc *accounts.Account, method string, provisioned bool) (*domain.LoginResult, error) {
	profile := domain.NewAccountProfile(acc)
	token, payload, err := i.signer.Issue(profile.ID, profile.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	evt := events.AccountLoggedInEvent{
		AccountID:   acc.ID,
		Method:      method,
		Provisioned: provisioned,
		At:          i.now().UTC(),
	}
	if i.publisher != nil {
		if err := i.publisher.Publish(ctx, events.AccountLoggedIn, evt); err != nil {
			logger.ErrorContext(ctx, "Failed to publish login event", "error", err, "account_id", acc.ID)
		}
	}

	return &domain.LoginResult{
		Account:      profile,
		SessionToken: token,
		Session:      payload,
		Provisioned:  provisioned,
	}, nil
}
