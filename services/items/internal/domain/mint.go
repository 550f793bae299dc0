package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxMintBatch caps how many serials one mint request may touch.
const MaxMintBatch = 500

var ErrInvalidSerials = errors.New("invalid serials")

type MintRequest struct {
	// Product is a SKU or a product UUID.
	Product string `json:"product" validate:"required,max=64"`
	Size    string `json:"size" validate:"required,max=16"`
	Serials string `json:"serials" validate:"required,max=4096"`
}

func (r *MintRequest) Normalize() {
	r.Product = strings.TrimSpace(r.Product)
	r.Size = strings.ToUpper(strings.TrimSpace(r.Size))
	r.Serials = strings.TrimSpace(r.Serials)
}

type MintResult struct {
	Serial  int       `json:"serial"`
	ItemID  uuid.UUID `json:"item_id"`
	Code    string    `json:"code,omitempty"`
	Rotated bool      `json:"rotated"`
	Skipped bool      `json:"skipped"`
	// Error is set when this serial could not be minted; rerun the batch for it.
	Error   string    `json:"error,omitempty"`
}

type MintResponse struct {
	ProductID uuid.UUID    `json:"product_id"`
	SKU       string       `json:"sku"`
	Size      string       `json:"size"`
	Minted    int          `json:"minted"`
	Rotated   int          `json:"rotated"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Items     []MintResult `json:"items"`
}

// ParseSerialRange accepts "a..b" or a comma separated list such as "1,2,5".
// The result is sorted, deduplicated and holds only positive serials.
func ParseSerialRange(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSerials)
	}

	if from, to, ok := strings.Cut(s, ".."); ok {
		lo, err := parseSerial(from)
		if err != nil {
			return nil, err
		}
		hi, err := parseSerial(to)
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("%w: range %d..%d is reversed", ErrInvalidSerials, lo, hi)
		}
		if hi-lo+1 > MaxMintBatch {
			return nil, fmt.Errorf("%w: at most %d serials per batch", ErrInvalidSerials, MaxMintBatch)
		}
		out := make([]int, 0, hi-lo+1)
		for n := lo; n <= hi; n++ {
			out = append(out, n)
		}
		return out, nil
	}

	seen := make(map[int]struct{})
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := parseSerial(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) > MaxMintBatch {
		return nil, fmt.Errorf("%w: at most %d serials per batch", ErrInvalidSerials, MaxMintBatch)
	}
	sort.Ints(out)
	return out, nil
}

func parseSerial(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive number", ErrInvalidSerials, strings.TrimSpace(s))
	}
	return n, nil
}
