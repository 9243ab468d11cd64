package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the highest inStock value still considered low stock.
const LowStockThreshold = 10

// Status is the availability label derived from a product's inStock count.
type Status string

const (
	StatusInStock    Status = "in stock"
	StatusLowStock   Status = "low stock"
	StatusOutOfStock Status = "out of stock"
)

// StatusFor derives the status of a product holding inStock sellable units.
func StatusFor(inStock int) Status {
	switch {
	case inStock <= 0:
		return StatusOutOfStock
	case inStock <= LowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Category is the fixed product category enumeration used by the catalog.
type Category string

const (
	CategoryPCCase       Category = "PC Case"
	CategoryHDD          Category = "HDD"
	CategorySSD          Category = "SSD"
	CategoryFan          Category = "Fan"
	CategoryCooler       Category = "Cooler"
	CategoryRAM          Category = "RAM"
	CategoryMotherboard  Category = "Motherboard"
	CategoryProcessor    Category = "Processor"
	CategoryGraphicsCard Category = "Graphics Card"
	CategoryPowerSupply  Category = "Power Supply Unit"
)

var categories = map[Category]struct{}{
	CategoryPCCase:       {},
	CategoryHDD:          {},
	CategorySSD:          {},
	CategoryFan:          {},
	CategoryCooler:       {},
	CategoryRAM:          {},
	CategoryMotherboard:  {},
	CategoryProcessor:    {},
	CategoryGraphicsCard: {},
	CategoryPowerSupply:  {},
}

// Valid reports whether c belongs to the category enumeration.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Product is the ledger record of a catalog item. Only Stock, InStock and
// Status are owned by the ledger; the rest is a copy of catalog data.
type Product struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	SKU       string          `json:"sku" gorm:"size:100;uniqueIndex;not null"`
	Name      string          `json:"name" gorm:"size:255;not null"`
	Category  Category        `json:"category" gorm:"size:50;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock     int             `json:"stock" gorm:"not null;default:0"`
	InStock   int             `json:"inStock" gorm:"not null;default:0"`
	Status    Status          `json:"status" gorm:"size:20;not null"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Decrement removes quantity units from InStock and recomputes Status.
// The record is left untouched when the request cannot be satisfied.
func (p *Product) Decrement(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.InStock {
		return &InsufficientStockError{Available: p.InStock}
	}
	p.InStock -= quantity
	p.Status = StatusFor(p.InStock)
	return nil
}

// Prepare validates a product handed over by the catalog and fills in the
// fields the ledger derives: a missing ID and the status.
func (p *Product) Prepare() error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.SKU == "" || p.Name == "" {
		return fmt.Errorf("%w: sku and name are required", ErrInvalidProduct)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	if p.Stock < 0 || p.InStock < 0 {
		return fmt.Errorf("%w: stock counts must not be negative", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Price = p.Price.Round(2)
	p.Status = StatusFor(p.InStock)
	return nil
}
