package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cloudmarket/backend/pkg/database"
	"github.com/cloudmarket/backend/services/items/internal/domain"
)

const (
	serialConstraint   = "item_instances_product_size_serial_key"
	codeHashConstraint = "item_instances_claim_code_hash_key"
)

var (
	// ErrDuplicateSerial means product, size and serial are already minted.
	ErrDuplicateSerial = errors.New("item serial already exists")
	// ErrCodeCollision means another item already holds the same code hash.
	ErrCodeCollision = errors.New("claim code hash already in use")
)

type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	FindBySerial(ctx context.Context, productID uuid.UUID, size string, serial int) (*domain.Item, error)
	Insert(ctx context.Context, item *domain.Item, codeHash string) error
	// SetCodeHash replaces the code of an unclaimed item. It reports false
	// when the item is missing or already claimed.
	SetCodeHash(ctx context.Context, id uuid.UUID, codeHash string) (bool, error)
	// Claim moves the unclaimed item holding codeHash to claimed in a single
	// conditional update. It returns nil when no unclaimed item matches.
	Claim(ctx context.Context, codeHash string, accountID int64, at time.Time) (*domain.Item, error)
	ListByOwner(ctx context.Context, accountID int64, limit int) ([]domain.OwnedItem, error)
}

type itemRepository struct {
	pool database.Pool
}

func NewItemRepository(pool database.Pool) ItemRepository {
	return &itemRepository{pool: pool}
}

const itemCols = `id, product_id, size, serial, status, claimed_by, claimed_at, created_at`

func scanItem(row pgx.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.ProductID, &it.Size, &it.Serial, &it.Status, &it.ClaimedBy, &it.ClaimedAt, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM item_instances WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanItem(r.pool.QueryRow(ctx, q, id))
}

func (r *itemRepository) FindBySerial(ctx context.Context, productID uuid.UUID, size string, serial int) (*domain.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM item_instances
		WHERE product_id = $1 AND size = $2 AND serial = $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanItem(r.pool.QueryRow(ctx, q, productID, size, serial))
}

func (r *itemRepository) Insert(ctx context.Context, item *domain.Item, codeHash string) error {
	const q = `
		INSERT INTO item_instances (id, product_id, size, serial, claim_code_hash, status)
		VALUES ($1, $2, $3, $4, $5, 'unclaimed')
		RETURNING created_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q, item.ID, item.ProductID, item.Size, item.Serial, codeHash).Scan(&item.CreatedAt)
	if err != nil {
		return mapUnique(err)
	}
	item.Status = domain.ItemUnclaimed
	return nil
}

func (r *itemRepository) SetCodeHash(ctx context.Context, id uuid.UUID, codeHash string) (bool, error) {
	const q = `
		UPDATE item_instances
		SET claim_code_hash = $2, updated_at = now()
		WHERE id = $1 AND status = 'unclaimed'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, codeHash)
	if err != nil {
		return false, mapUnique(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *itemRepository) Claim(ctx context.Context, codeHash string, accountID int64, at time.Time) (*domain.Item, error) {
	const q = `
		UPDATE item_instances
		SET status = 'claimed', claimed_by = $2, claimed_at = $3,
		    claim_code_hash = NULL, updated_at = $3
		WHERE claim_code_hash = $1 AND status = 'unclaimed'
		RETURNING ` + itemCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanItem(r.pool.QueryRow(ctx, q, codeHash, accountID, at))
}

func (r *itemRepository) ListByOwner(ctx context.Context, accountID int64, limit int) ([]domain.OwnedItem, error) {
	const q = `
		SELECT i.id, p.sku, p.title, p.image_url, i.size, i.serial, i.claimed_at
		FROM item_instances i
		JOIN products p ON p.id = i.product_id
		WHERE i.claimed_by = $1 AND i.status = 'claimed'
		ORDER BY i.claimed_at DESC
		LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OwnedItem
	for rows.Next() {
		var it domain.OwnedItem
		if err := rows.Scan(&it.ItemID, &it.SKU, &it.Title, &it.ImageURL, &it.Size, &it.Serial, &it.ClaimedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func mapUnique(err error) error {
	switch constraint, ok := database.UniqueViolation(err); {
	case ok && constraint == serialConstraint:
		return ErrDuplicateSerial
	case ok && constraint == codeHashConstraint:
		return ErrCodeCollision
	}
	return err
}
