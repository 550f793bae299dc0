package service

import (
	"errors"
	"fmt"

	"github.com/cloudmarket/backend/pkg/codes"
)

var (
	ErrInvalidLength    = fmt.Errorf("%w: code must be 10 digits", codes.ErrInvalidFormat)
	ErrChecksumMismatch = fmt.Errorf("%w: check digit mismatch", codes.ErrInvalidFormat)

	// ErrNotFound covers both a wrong code and an already claimed one so
	// callers cannot enumerate which codes exist.
	ErrNotFound        = errors.New("item not found")
	ErrAlreadyClaimed  = errors.New("item already claimed")
	ErrProductNotFound = errors.New("product not found")
)
