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

// ProductRepository is a read-only view of the catalog. Lookups return
// (nil, nil) when nothing matches.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
}

type productRepository struct {
	pool database.Pool
}

func NewProductRepository(pool database.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	const q = `SELECT id, sku, title, image_url FROM products WHERE id = $1`
	return r.findOne(ctx, q, id)
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	const q = `SELECT id, sku, title, image_url FROM products WHERE sku = $1`
	return r.findOne(ctx, q, sku)
}

func (r *productRepository) findOne(ctx context.Context, q string, arg any) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p domain.Product
	err := r.pool.QueryRow(ctx, q, arg).Scan(&p.ID, &p.SKU, &p.Title, &p.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
