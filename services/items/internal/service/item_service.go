package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cloudmarket/backend/pkg/codes"
	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/services/items/internal/domain"
	"github.com/cloudmarket/backend/services/items/internal/repository"
)

const (
	// codeAttempts bounds retries when a fresh code collides with a live one.
	codeAttempts = 5
	mintWorkers  = 8
	ownedLimit   = 20

	mintFailedMessage = "mint failed, retry this serial"
)

type ItemService interface {
	IssueClaimCode(ctx context.Context, itemID uuid.UUID) (string, error)
	RedeemClaimCode(ctx context.Context, code string, accountID int64) error
	Mint(ctx context.Context, req domain.MintRequest) (*domain.MintResponse, error)
	ListOwned(ctx context.Context, accountID int64) ([]domain.OwnedItem, error)
}

type itemService struct {
	items     repository.ItemRepository
	products  repository.ProductRepository
	publisher events.Publisher
	newCode   func() (string, error)
	now       func() time.Time
}

func NewItemService(items repository.ItemRepository, products repository.ProductRepository, publisher events.Publisher) ItemService {
	return &itemService{
		items:     items,
		products:  products,
		publisher: publisher,
		newCode:   codes.NewClaimCode,
		now:       time.Now,
	}
}

func (s *itemService) IssueClaimCode(ctx context.Context, itemID uuid.UUID) (string, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil {
		return "", ErrNotFound
	}
	if item.Status != domain.ItemUnclaimed {
		return "", ErrAlreadyClaimed
	}

	for range codeAttempts {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate claim code: %w", err)
		}

		ok, err := s.items.SetCodeHash(ctx, itemID, codes.Hash(code))
		switch {
		case errors.Is(err, repository.ErrCodeCollision):
			continue
		case err != nil:
			return "", fmt.Errorf("failed to store claim code: %w", err)
		case !ok:
			// Claimed between the read and the write.
			return "", ErrAlreadyClaimed
		}

		logger.InfoContext(ctx, "Claim code issued", "item_id", itemID)
		return code, nil
	}
	return "", fmt.Errorf("no free claim code after %d attempts", codeAttempts)
}

func (s *itemService) RedeemClaimCode(ctx context.Context, code string, accountID int64) error {
	digits := codes.Digits(code)
	if len(digits) != codes.ClaimCodeLength {
		return ErrInvalidLength
	}
	if valid, _ := codes.LuhnValid(digits); !valid {
		return ErrChecksumMismatch
	}

	now := s.now()
	item, err := s.items.Claim(ctx, codes.Hash(digits), accountID, now)
	if err != nil {
		return fmt.Errorf("failed to claim item: %w", err)
	}
	if item == nil {
		return ErrNotFound
	}

	logger.InfoContext(ctx, "Item claimed", "item_id", item.ID, "account_id", accountID)

	evt := events.ItemClaimedEvent{ItemID: item.ID, AccountID: accountID, ClaimedAt: now.UTC()}
	if err := s.publisher.Publish(ctx, events.ItemClaimed, evt); err != nil {
		logger.ErrorContext(ctx, "Failed to publish claim event", "error", err, "item_id", item.ID)
	}
	return nil
}

func (s *itemService) ListOwned(ctx context.Context, accountID int64) ([]domain.OwnedItem, error) {
	items, err := s.items.ListByOwner(ctx, accountID, ownedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if items == nil {
		items = []domain.OwnedItem{}
	}
	return items, nil
}

// Mint provisions one item per serial. Serials that already exist get a new
// code while unclaimed and are skipped once claimed. A serial that fails is
// reported with Error set; the rest of the batch still returns its codes.
func (s *itemService) Mint(ctx context.Context, req domain.MintRequest) (*domain.MintResponse, error) {
	serials, err := domain.ParseSerialRange(req.Serials)
	if err != nil {
		return nil, err
	}

	product, err := s.resolveProduct(ctx, req.Product)
	if err != nil {
		return nil, err
	}

	results := make([]domain.MintResult, len(serials))
	var g errgroup.Group
	g.SetLimit(mintWorkers)
	for i, serial := range serials {
		g.Go(func() error {
			res, err := s.mintOne(ctx, product.ID, req.Size, serial)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to mint serial", "error", err, "sku", product.SKU, "size", req.Size, "serial", serial)
				res = domain.MintResult{Serial: serial, Error: mintFailedMessage}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.MintResponse{
		ProductID: product.ID,
		SKU:       product.SKU,
		Size:      req.Size,
		Items:     results,
	}
	for _, r := range results {
		switch {
		case r.Error != "":
			out.Failed++
		case r.Skipped:
			out.Skipped++
		case r.Rotated:
			out.Rotated++
		default:
			out.Minted++
		}
	}

	logger.InfoContext(ctx, "Mint batch finished",
		"sku", product.SKU, "size", req.Size,
		"minted", out.Minted, "rotated", out.Rotated, "skipped", out.Skipped, "failed", out.Failed,
	)

	evt := events.ItemMintedEvent{
		ProductID: product.ID,
		Size:      req.Size,
		Minted:    out.Minted,
		Rotated:   out.Rotated,
		Skipped:   out.Skipped,
		Failed:    out.Failed,
		At:        s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.ItemMinted, evt); err != nil {
		logger.ErrorContext(ctx, "Failed to publish mint event", "error", err)
	}
	return out, nil
}

func (s *itemService) resolveProduct(ctx context.Context, ref string) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		product, err = s.products.FindByID(ctx, id)
	} else {
		product, err = s.products.FindBySKU(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *itemService) mintOne(ctx context.Context, productID uuid.UUID, size string, serial int) (domain.MintResult, error) {
	res := domain.MintResult{Serial: serial}

	for range codeAttempts {
		code, err := s.newCode()
		if err != nil {
			return res, err
		}
		hash := codes.Hash(code)

		item := &domain.Item{ID: uuid.New(), ProductID: productID, Size: size, Serial: serial}
		err = s.items.Insert(ctx, item, hash)
		switch {
		case err == nil:
			res.ItemID = item.ID
			res.Code = code
			return res, nil
		case errors.Is(err, repository.ErrCodeCollision):
			continue
		case !errors.Is(err, repository.ErrDuplicateSerial):
			return res, err
		}

		existing, err := s.items.FindBySerial(ctx, productID, size, serial)
		if err != nil {
			return res, err
		}
		if existing == nil {
			// Deleted underneath us; try inserting again.
			continue
		}
		res.ItemID = existing.ID
		if existing.Status != domain.ItemUnclaimed {
			res.Skipped = true
			return res, nil
		}

		ok, err := s.items.SetCodeHash(ctx, existing.ID, hash)
		switch {
		case errors.Is(err, repository.ErrCodeCollision):
			continue
		case err != nil:
			return res, err
		case !ok:
			res.Skipped = true
			return res, nil
		}
		res.Code = code
		res.Rotated = true
		return res, nil
	}
	return res, fmt.Errorf("no free claim code after %d attempts", codeAttempts)
}
