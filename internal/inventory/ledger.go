package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrProductNotFound is returned when no product has the requested ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidQuantity is returned for a non-positive decrement.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// ErrInsufficientStock matches every InsufficientStockError via errors.Is.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidProduct is returned when catalog data fails validation.
	ErrInvalidProduct = errors.New("invalid product")
)

// InsufficientStockError reports a decrement larger than the sellable count.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock. Available: %d", e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Reader gives read access to ledger records.
type Reader interface {
	Product(ctx context.Context, id string) (*Product, error)
}

// Ledger is the only write path to a product's stock fields.
//
// ReserveAndDecrement must behave as one serializable unit against the
// product row: two concurrent calls whose quantities add up to more than the
// sellable count can never both succeed.
type Ledger interface {
	Reader
	ReserveAndDecrement(ctx context.Context, id string, quantity int) (*Product, error)
}

// Catalog receives products handed over by catalog management.
type Catalog interface {
	CreateProduct(ctx context.Context, p *Product) error
}

// LoadSeed decodes a JSON array of products and prepares each of them.
func LoadSeed(r io.Reader) ([]*Product, error) {
	var products []*Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode seed products: %w", err)
	}
	for i, p := range products {
		if err := p.Prepare(); err != nil {
			return nil, fmt.Errorf("seed product %d: %w", i, err)
		}
	}
	return products, nil
}

// Import prepares and stores every product through the catalog.
func Import(ctx context.Context, c Catalog, products []*Product) error {
	for _, p := range products {
		if err := p.Prepare(); err != nil {
			return err
		}
		if err := c.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", p.SKU, err)
		}
	}
	return nil
}
