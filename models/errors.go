package models

import (
	"errors"
	"fmt"
)

// Validation errors block the mutation entirely; nothing is partially applied.
var (
	ErrNotFound        = errors.New("product not found in catalog")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")
	ErrOutOfRange      = errors.New("index out of range")
	ErrDuplicateId     = errors.New("product id already exists")
	ErrInvalidProduct  = errors.New("product id, name and a non-negative price are required")
)

// InsufficientStockError is returned when an add would exceed the available
// pool (free stock plus what this cart line already holds). Available is
// reported so the caller can message it.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("only %d items available in stock", e.Available)
}

// StockClamp is the warning surfaced when an edit requests more than the
// available pool and the quantity is clamped instead of rejected.
type StockClamp struct {
	Requested int
	ClampedTo int
}

func (w *StockClamp) Error() string {
	return fmt.Sprintf("requested %d exceeds available stock; quantity clamped to %d", w.Requested, w.ClampedTo)
}

// PersistenceLoadError signals malformed stored data. It is recoverable: the
// caller continues with seed/default state.
type PersistenceLoadError struct {
	Key   string
	Cause error
}

func (e *PersistenceLoadError) Error() string {
	return fmt.Sprintf("malformed data under %q: %v", e.Key, e.Cause)
}

func (e *PersistenceLoadError) Unwrap() error { return e.Cause }

// PersistenceWriteError signals a failed store write. The in-memory state
// stays authoritative for the session; the error is a warning, never fatal.
type PersistenceWriteError struct {
	Key   string
	Cause error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("failed to write %q: %v", e.Key, e.Cause)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Cause }
