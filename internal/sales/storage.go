package sales

import (
	"context"
	"errors"

	"api_backoffice/internal/inventory"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// ErrDuplicateIdempotencyKey is returned by Set when another sale of the
// same admin already holds the idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// Storage is the main interface for our sales storage layer.
type Storage interface {
	Set(ctx context.Context, sale *Sale) error
	Read(ctx context.Context, id string) (*Sale, error)
	// GetAll returns every sale, newest transaction date first.
	GetAll(ctx context.Context) ([]*Sale, error)
	// FindByIdempotencyKey returns the sale adminID created with key.
	FindByIdempotencyKey(ctx context.Context, adminID, key string) (*Sale, error)
}

// Tx is the transactional view a sale is recorded through. Writes made
// through it become visible only if the surrounding WithinTx commits.
type Tx interface {
	inventory.Ledger
	Storage
}

// Repository is the persistence boundary of the sale processor.
type Repository interface {
	inventory.Reader
	Storage
	// WithinTx runs fn as one atomic unit. Returning an error from fn, or a
	// context that is done before commit, rolls every write back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
