package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput covers malformed requests rejected before any storage access.
	ErrInvalidInput = errors.New("invalid input")

	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("not enough stock available")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrPaymentProvider   = errors.New("payment provider unavailable")

	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient privileges")

	// ErrStorageFailure wraps transaction-level failures. Operations that return it left no partial
	// state behind and may be retried.
	ErrStorageFailure = errors.New("storage failure")
)

var expected = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrInvalidInput,
	ErrOutOfStock,
	ErrInsufficientStock,
	ErrEmptyCart,
	ErrInvalidTransition,
	ErrInvalidSignature,
	ErrPaymentProvider,
	ErrUnauthorized,
	ErrForbidden,
	ErrStorageFailure,
}

// IsExpected reports whether err carries one of the sentinel errors above.
func IsExpected(err error) bool {
	for _, target := range expected {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// StorageFailure passes expected errors through untouched and tags anything else as ErrStorageFailure.
func StorageFailure(err error) error {
	if err == nil || IsExpected(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}
