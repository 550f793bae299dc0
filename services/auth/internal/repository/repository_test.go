package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmarket/backend/services/auth/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestOTPCreateStoresOnlyHash(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c := &domain.Challenge{
		Phone:     "+79991234567",
		CodeHash:  "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}

	mock.ExpectQuery(`INSERT INTO otp_challenges \(phone, code_hash, created_at, expires_at\)`).
		WithArgs(c.Phone, c.CodeHash, c.CreatedAt, c.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(31)))

	require.NoError(t, NewOTPRepository(mock).Create(context.Background(), c))
	assert.Equal(t, int64(31), c.ID)
}

func TestOTPLatest(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM otp_challenges\s+WHERE phone = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT 1`).
		WithArgs("+79991234567").
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone", "code_hash", "created_at", "expires_at", "consumed", "consumed_at"}).
			AddRow(int64(31), "+79991234567", "hash", now, now.Add(10*time.Minute), false, (*time.Time)(nil)))

	c, err := NewOTPRepository(mock).Latest(context.Background(), "+79991234567")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(31), c.ID)
	assert.False(t, c.Consumed)
	assert.Nil(t, c.ConsumedAt)
}

func TestOTPLatestNone(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM otp_challenges`).
		WithArgs("+79991234567").
		WillReturnError(pgx.ErrNoRows)

	c, err := NewOTPRepository(mock).Latest(context.Background(), "+79991234567")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOTPMarkConsumedIsConditional(t *testing.T) {
	mock := newMock(t)
	at := time.Date(2026, 2, 1, 10, 5, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE otp_challenges\s+SET consumed = true, consumed_at = \$2\s+WHERE id = \$1 AND consumed = false`).
		WithArgs(int64(31), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE otp_challenges`).
		WithArgs(int64(31), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewOTPRepository(mock)
	ok, err := repo.MarkConsumed(context.Background(), 31, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConsumed(context.Background(), 31, at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPDeleteExpired(t *testing.T) {
	mock := newMock(t)
	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM otp_challenges WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	n, err := NewOTPRepository(mock).DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestRateLimit(t *testing.T) {
	mock := newMock(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &rateLimitRepository{pool: mock, now: func() time.Time { return now }}

	mock.ExpectQuery(`INSERT INTO rate_limits`).
		WithArgs(pgxmock.AnyArg(), now, now.Add(time.Minute), now.Add(-time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`INSERT INTO rate_limits`).
		WithArgs(pgxmock.AnyArg(), now, now.Add(time.Minute), now.Add(-time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	allowed, err := repo.CheckRateLimit(context.Background(), "otp:request:+79991234567", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(context.Background(), "otp:request:+79991234567", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRateLimitReturnsStoreError(t *testing.T) {
	mock := newMock(t)
	dbErr := errors.New("db down")
	mock.ExpectQuery(`INSERT INTO rate_limits`).
		WillReturnError(dbErr)

	allowed, err := NewRateLimitRepository(mock).CheckRateLimit(context.Background(), "k", 1, time.Minute)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, allowed)
}
