package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"api_backoffice/internal/inventory"
)

// Sale is an immutable record of an accepted sale transaction. ProductName
// and UnitPrice are snapshots taken when the sale was recorded.
type Sale struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	ProductID       string          `json:"productId" gorm:"size:36;index;not null"`
	ProductName     string          `json:"productName" gorm:"size:255;not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	UnitPrice       decimal.Decimal `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	TransactionDate time.Time       `json:"transactionDate" gorm:"index;not null"`
	AdminID         string          `json:"adminId" gorm:"size:64;index;uniqueIndex:idx_sales_admin_idempotency,priority:1"`
	IdempotencyKey  *string         `json:"idempotencyKey,omitempty" gorm:"size:128;uniqueIndex:idx_sales_admin_idempotency,priority:2"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CreateSaleInput is a sale request as accepted by the processor.
type CreateSaleInput struct {
	ProductID string
	Quantity  int
	// UnitPrice defaults to the product's current price.
	UnitPrice *decimal.Decimal
	// TransactionDate defaults to now.
	TransactionDate *time.Time
	AdminID         string
	// IdempotencyKey is scoped to AdminID: two admins may use the same key.
	IdempotencyKey string
}

// Recorded is handed to listeners once a sale has been committed.
type Recorded struct {
	AdminID string
	Sale    *Sale
	Product *inventory.Product
}
