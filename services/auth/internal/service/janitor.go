package service

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/services/auth/internal/repository"
)

// challengeRetention is how long expired challenges are kept for audit.
const challengeRetention = 24 * time.Hour

// RunJanitor prunes expired challenges and rate limit rows every interval
// until ctx is cancelled.
func RunJanitor(ctx context.Context, interval time.Duration, otpRepo repository.OTPRepository, limits repository.RateLimitRepository) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, otpRepo, limits, time.Now())
		}
	}
}

func sweep(ctx context.Context, otpRepo repository.OTPRepository, limits repository.RateLimitRepository, now time.Time) {
	if n, err := otpRepo.DeleteExpired(ctx, now.Add(-challengeRetention)); err != nil {
		logger.ErrorContext(ctx, "Failed to delete expired challenges", "error", err)
	} else if n > 0 {
		logger.InfoContext(ctx, "Deleted expired challenges", "count", n)
	}

	if n, err := limits.CleanupExpired(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to clean up rate limits", "error", err)
	} else if n > 0 {
		logger.DebugContext(ctx, "Cleaned up rate limits", "count", n)
	}
}
