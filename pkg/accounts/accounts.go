// Package accounts is the account and phone directory shared by the auth and
// notify services.
package accounts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cloudmarket/backend/pkg/database"
)

type Account struct {
	ID         int64     `json:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Username   *string   `json:"username,omitempty"`
	FirstName  *string   `json:"first_name,omitempty"`
	LastName   *string   `json:"last_name,omitempty"`
	PhotoURL   *string   `json:"photo_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayName prefers the first name, then the username, then the phone.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != nil && *a.FirstName != "":
		return *a.FirstName
	case a.Username != nil && *a.Username != "":
		return *a.Username
	case a.Phone != nil:
		return *a.Phone
	}
	return ""
}

// ChatHandle is the Telegram chat that direct messages go to, or "" when the
// account never talked to the bot.
func (a *Account) ChatHandle() string {
	if a.TelegramID == nil {
		return ""
	}
	return strconv.FormatInt(*a.TelegramID, 10)
}

type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// Directory lookups return (nil, nil) when nothing matches.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	ChatHandleForAccount(ctx context.Context, id int64) (string, error)
	CreateWithPhone(ctx context.Context, phone string) (*Account, error)
	UpsertTelegram(ctx context.Context, p TelegramProfile) (*Account, error)
}

type directory struct {
	pool database.Pool
}

func NewDirectory(pool database.Pool) Directory {
	return &directory{pool: pool}
}

const accountColumns = `id, tg_user_id, phone, username, first_name, last_name, photo_url, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TelegramID, &a.Phone, &a.Username, &a.FirstName, &a.LastName, &a.PhotoURL, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *directory) FindByPhone(ctx context.Context, phone string) (*Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM users WHERE phone = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanAccount(d.pool.QueryRow(ctx, q, phone))
}

func (d *directory) FindByID(ctx context.Context, id int64) (*Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanAccount(d.pool.QueryRow(ctx, q, id))
}

func (d *directory) ChatHandleForAccount(ctx context.Context, id int64) (string, error) {
	const q = `SELECT tg_user_id FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var tgID *int64
	err := d.pool.QueryRow(ctx, q, id).Scan(&tgID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && tgID == nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(*tgID, 10), nil
}

// CreateWithPhone provisions an account for a verified phone. A concurrent
// provisioning of the same phone returns the existing row.
func (d *directory) CreateWithPhone(ctx context.Context, phone string) (*Account, error) {
	const q = `
		INSERT INTO users (phone)
		VALUES ($1)
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
		RETURNING ` + accountColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanAccount(d.pool.QueryRow(ctx, q, phone))
}

func (d *directory) UpsertTelegram(ctx context.Context, p TelegramProfile) (*Account, error) {
	const q = `
		INSERT INTO users (tg_user_id, username, first_name, last_name, photo_url)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (tg_user_id) DO UPDATE SET
			username   = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			last_name  = COALESCE(EXCLUDED.last_name, users.last_name),
			photo_url  = COALESCE(EXCLUDED.photo_url, users.photo_url),
			updated_at = now()
		RETURNING ` + accountColumns

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanAccount(d.pool.QueryRow(ctx, q, p.TelegramID, p.Username, p.FirstName, p.LastName, p.PhotoURL))
}
