package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ItemStatus string

const (
	ItemUnclaimed ItemStatus = "unclaimed"
	ItemClaimed   ItemStatus = "claimed"
)

// Item is one physical garment. Its claim code is only ever held as a hash
// and the hash is cleared when the item is claimed.
type Item struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	Size      string     `json:"size"`
	Serial    int        `json:"serial"`
	Status    ItemStatus `json:"status"`
	ClaimedBy *int64     `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Product struct {
	ID       uuid.UUID `json:"id"`
	SKU      string    `json:"sku"`
	Title    string    `json:"title"`
	ImageURL *string   `json:"image_url,omitempty"`
}

// OwnedItem is a claimed item joined with its product for the owner's list.
type OwnedItem struct {
	ItemID    uuid.UUID `json:"item_id"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Size      string    `json:"size"`
	Serial    int       `json:"serial"`
	ClaimedAt time.Time `json:"claimed_at"`
}

type ClaimRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

func (r *ClaimRequest) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
}

type IssuedCode struct {
	ItemID uuid.UUID `json:"item_id"`
	Code   string    `json:"code"`
}
