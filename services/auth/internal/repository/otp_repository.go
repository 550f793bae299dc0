package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cloudmarket/backend/pkg/database"
	"github.com/cloudmarket/backend/services/auth/internal/domain"
)

type OTPRepository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// Latest returns the newest challenge for phone whether or not it was
	// consumed, or nil when the phone never requested one.
	Latest(ctx context.Context, phone string) (*domain.Challenge, error)
	// MarkConsumed flips the consumed flag and reports whether this call did
	// the flip.
	MarkConsumed(ctx context.Context, id int64, at time.Time) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	pool database.Pool
}

func NewOTPRepository(pool database.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Create(ctx context.Context, c *domain.Challenge) error {
	const q = `
		INSERT INTO otp_challenges (phone, code_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q, c.Phone, c.CodeHash, c.CreatedAt, c.ExpiresAt).Scan(&c.ID)
}

func (r *otpRepository) Latest(ctx context.Context, phone string) (*domain.Challenge, error) {
	const q = `
		SELECT id, phone, code_hash, created_at, expires_at, consumed, consumed_at
		FROM otp_challenges
		WHERE phone = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Challenge
	err := r.pool.QueryRow(ctx, q, phone).Scan(
		&c.ID, &c.Phone, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Consumed, &c.ConsumedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *otpRepository) MarkConsumed(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
		UPDATE otp_challenges
		SET consumed = true, consumed_at = $2
		WHERE id = $1 AND consumed = false`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM otp_challenges WHERE expires_at < $1`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
