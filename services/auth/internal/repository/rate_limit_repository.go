package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/pkg/database"
)

type RateLimitRepository interface {
	// CheckRateLimit counts one hit against key and reports whether the
	// count is still within limit for the current window. Callers decide
	// what a store error means; the auth service fails open.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type rateLimitRepository struct {
	pool database.Pool
	now  func() time.Time
}

func NewRateLimitRepository(pool database.Pool) RateLimitRepository {
	return &rateLimitRepository{pool: pool, now: time.Now}
}

func (r *rateLimitRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// Keys contain phone numbers and IPs; store only their digest.
	sum := sha256.Sum256([]byte(key))
	hashedKey := hex.EncodeToString(sum[:])

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := r.now()
	windowStart := now.Add(-window)

	const q = `
		INSERT INTO rate_limits (rl_key, count, window_start, expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (rl_key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start < $4 THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < $4 THEN $2
				ELSE rate_limits.window_start
			END,
			expires_at = $3
		RETURNING count`

	var count int
	err := r.pool.QueryRow(ctx, q, hashedKey, now, now.Add(window), windowStart).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count rate limit hit: %w", err)
	}

	return count <= limit, nil
}

func (r *rateLimitRepository) CleanupExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM rate_limits WHERE expires_at < now()`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
