package inventory

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		inStock int
		want    Status
	}{
		{0, StatusOutOfStock},
		{1, StatusLowStock},
		{LowStockThreshold, StatusLowStock},
		{LowStockThreshold + 1, StatusInStock},
		{500, StatusInStock},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.inStock), "inStock=%d", tc.inStock)
	}
}

func TestProductDecrement(t *testing.T) {
	p := &Product{InStock: 15, Status: StatusInStock}

	require.NoError(t, p.Decrement(5))
	assert.Equal(t, 10, p.InStock)
	assert.Equal(t, StatusLowStock, p.Status)

	require.NoError(t, p.Decrement(10))
	assert.Equal(t, 0, p.InStock)
	assert.Equal(t, StatusOutOfStock, p.Status)
}

func TestProductDecrement_Insufficient(t *testing.T) {
	p := &Product{InStock: 5, Status: StatusLowStock}

	err := p.Decrement(6)

	var insufficient *InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.Available)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock. Available: 5", err.Error())
	assert.Equal(t, 5, p.InStock, "a rejected decrement must not write")
	assert.Equal(t, StatusLowStock, p.Status)
}

func TestProductDecrement_InvalidQuantity(t *testing.T) {
	p := &Product{InStock: 5}
	assert.ErrorIs(t, p.Decrement(0), ErrInvalidQuantity)
	assert.ErrorIs(t, p.Decrement(-2), ErrInvalidQuantity)
	assert.Equal(t, 5, p.InStock)
}

func TestProductPrepare(t *testing.T) {
	p := &Product{SKU: " SSD-1 ", Name: "NVMe 1TB", Category: CategorySSD, InStock: 7, Price: decimal.RequireFromString("89.999")}

	require.NoError(t, p.Prepare())
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "SSD-1", p.SKU)
	assert.Equal(t, StatusLowStock, p.Status)
	assert.Equal(t, "90", p.Price.String())
}

func TestProductPrepare_Rejects(t *testing.T) {
	cases := map[string]Product{
		"missing sku":    {Name: "x", Category: CategoryFan},
		"bad category":   {SKU: "a", Name: "x", Category: "Toaster"},
		"negative stock": {SKU: "a", Name: "x", Category: CategoryFan, Stock: -1},
		"negative price": {SKU: "a", Name: "x", Category: CategoryFan, Price: decimal.NewFromInt(-1)},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Prepare(), ErrInvalidProduct)
		})
	}
}

func TestLoadSeed(t *testing.T) {
	body := `[
		{"sku": "RAM-16", "name": "DDR5 16GB", "category": "RAM", "price": "59.90", "stock": 40, "inStock": 12},
		{"id": "fixed-id", "sku": "FAN-1", "name": "120mm Fan", "category": "Fan", "price": 9.5, "inStock": 0}
	]`

	products, err := LoadSeed(strings.NewReader(body))

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, StatusInStock, products[0].Status)
	assert.Equal(t, "fixed-id", products[1].ID)
	assert.Equal(t, StatusOutOfStock, products[1].Status)
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("9.50")))
}

func TestLoadSeed_InvalidProduct(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`[{"sku": "x", "name": "y", "category": "Toaster"}]`))
	assert.ErrorIs(t, err, ErrInvalidProduct)
}
