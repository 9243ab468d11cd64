package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
)

// SalesRepository stores products and sales in one database so a sale and
// its ledger decrement commit together.
type SalesRepository struct {
	queries
}

// NewSalesRepository creates a repository on top of db.
func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{queries{db: db}}
}

// CreateProduct stores a product handed over by the catalog.
func (r *SalesRepository) CreateProduct(ctx context.Context, p *inventory.Product) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: sku %s already exists", inventory.ErrInvalidProduct, p.SKU)
	}
	return err
}

// WithinTx runs fn inside a database transaction bound to ctx.
func (r *SalesRepository) WithinTx(ctx context.Context, fn func(tx sales.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txQueries{queries{db: tx}})
	})
}

// SummarizeSales aggregates the sales whose transaction date is in [from, to).
func (r *SalesRepository) SummarizeSales(ctx context.Context, from, to time.Time) (reports.Totals, error) {
	var row struct {
		Value        decimal.Decimal
		Units        int64
		Transactions int64
	}
	err := r.db.WithContext(ctx).Model(&sales.Sale{}).
		Select("COALESCE(SUM(total_amount), 0) AS value, COALESCE(SUM(quantity), 0) AS units, COUNT(*) AS transactions").
		Where("transaction_date >= ? AND transaction_date < ?", from.UTC(), to.UTC()).
		Scan(&row).Error
	if err != nil {
		return reports.Totals{}, err
	}
	return reports.Totals{Value: row.Value, Units: row.Units, Transactions: row.Transactions}, nil
}

// queries are the reads and writes shared by the repository and its
// transactions.
type queries struct {
	db *gorm.DB
}

func (q queries) Product(ctx context.Context, id string) (*inventory.Product, error) {
	var p inventory.Product
	err := q.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) Set(ctx context.Context, sale *sales.Sale) error {
	if sale.ID == "" {
		return sales.ErrEmptyID
	}
	err := q.db.WithContext(ctx).Create(sale).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sales.ErrDuplicateIdempotencyKey
	}
	return err
}

func (q queries) Read(ctx context.Context, id string) (*sales.Sale, error) {
	var s sales.Sale
	err := q.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sales.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (q queries) GetAll(ctx context.Context) ([]*sales.Sale, error) {
	var all []*sales.Sale
	if err := q.db.WithContext(ctx).Order("transaction_date DESC").Order("created_at DESC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

func (q queries) FindByIdempotencyKey(ctx context.Context, adminID, key string) (*sales.Sale, error) {
	var s sales.Sale
	err := q.db.WithContext(ctx).First(&s, "admin_id = ? AND idempotency_key = ?", adminID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sales.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// txQueries adds the ledger write, which is only reachable inside WithinTx.
type txQueries struct {
	queries
}

// ReserveAndDecrement applies the decrement as one conditional update; a
// concurrent decrement either commits first and shrinks in_stock, or waits
// on the row, so the WHERE clause always sees the latest count.
func (t txQueries) ReserveAndDecrement(ctx context.Context, id string, quantity int) (*inventory.Product, error) {
	if quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	res := t.db.WithContext(ctx).Model(&inventory.Product{}).
		Where("id = ? AND in_stock >= ?", id, quantity).
		UpdateColumn("in_stock", gorm.Expr("in_stock - ?", quantity))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		p, err := t.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &inventory.InsufficientStockError{Available: p.InStock}
	}

	p, err := t.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = inventory.StatusFor(p.InStock)
	p.UpdatedAt = time.Now().UTC()
	err = t.db.WithContext(ctx).Model(&inventory.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"status": p.Status, "updated_at": p.UpdatedAt}).Error
	if err != nil {
		return nil, err
	}
	return p, nil
}
