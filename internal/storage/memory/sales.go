// Package memory provides in-memory implementations of the storage
// interfaces, used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
)

// LocalStorage keeps products and sales in maps. Transactions hold one
// lock for their whole duration, so they are serializable by construction.
type LocalStorage struct {
	mu       sync.Mutex
	products map[string]inventory.Product
	skus     map[string]string
	sales    map[string]*sales.Sale
	// idempotencyScope(adminID, key) -> sale ID
	keys map[string]string
}

// NewLocalStorage instantiates a new LocalStorage with empty maps.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		products: map[string]inventory.Product{},
		skus:     map[string]string{},
		sales:    map[string]*sales.Sale{},
		keys:     map[string]string{},
	}
}

// CreateProduct stores a product handed over by the catalog.
func (l *LocalStorage) CreateProduct(_ context.Context, p *inventory.Product) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.skus[p.SKU]; dup {
		return inventory.ErrInvalidProduct
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	l.products[p.ID] = *p
	l.skus[p.SKU] = p.ID
	return nil
}

// Product returns a copy of the committed product record.
func (l *LocalStorage) Product(_ context.Context, id string) (*inventory.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

// Set stores a sale outside of a transaction.
// Returns ErrEmptyID if the sale has an empty ID.
func (l *LocalStorage) Set(_ context.Context, sale *sales.Sale) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.putSale(sale)
}

// Read retrieves a sale from the local storage by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(_ context.Context, id string) (*sales.Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sales[id]
	if !ok {
		return nil, sales.ErrNotFound
	}
	return cloneSale(s), nil
}

// GetAll retrieves all sales, newest transaction date first.
func (l *LocalStorage) GetAll(_ context.Context) ([]*sales.Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]*sales.Sale, 0, len(l.sales))
	for _, s := range l.sales {
		all = append(all, cloneSale(s))
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TransactionDate.Equal(all[j].TransactionDate) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].TransactionDate.After(all[j].TransactionDate)
	})
	return all, nil
}

// FindByIdempotencyKey returns the sale adminID created with key.
func (l *LocalStorage) FindByIdempotencyKey(_ context.Context, adminID, key string) (*sales.Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.saleByKey(adminID, key)
	if err != nil {
		return nil, err
	}
	return cloneSale(s), nil
}

// WithinTx runs fn against a staged view and applies the staged writes only
// when fn succeeds and ctx is still live.
func (l *LocalStorage) WithinTx(ctx context.Context, fn func(tx sales.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &localTx{
		store:    l,
		products: map[string]inventory.Product{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, p := range tx.products {
		l.products[id] = p
	}
	for _, s := range tx.sales {
		if err := l.putSale(s); err != nil {
			return err
		}
	}
	return nil
}

// SummarizeSales aggregates the sales whose transaction date is in [from, to).
func (l *LocalStorage) SummarizeSales(_ context.Context, from, to time.Time) (reports.Totals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := reports.Totals{Value: decimal.Zero}
	for _, s := range l.sales {
		if s.TransactionDate.Before(from) || !s.TransactionDate.Before(to) {
			continue
		}
		totals.Value = totals.Value.Add(s.TotalAmount)
		totals.Units += int64(s.Quantity)
		totals.Transactions++
	}
	return totals, nil
}

func (l *LocalStorage) putSale(s *sales.Sale) error {
	if s.ID == "" {
		return sales.ErrEmptyID
	}
	if s.IdempotencyKey != nil {
		scope := idempotencyScope(s.AdminID, *s.IdempotencyKey)
		if owner, ok := l.keys[scope]; ok && owner != s.ID {
			return sales.ErrDuplicateIdempotencyKey
		}
		l.keys[scope] = s.ID
	}
	l.sales[s.ID] = cloneSale(s)
	return nil
}

func (l *LocalStorage) saleByKey(adminID, key string) (*sales.Sale, error) {
	id, ok := l.keys[idempotencyScope(adminID, key)]
	if !ok {
		return nil, sales.ErrNotFound
	}
	return l.sales[id], nil
}

func idempotencyScope(adminID, key string) string {
	return adminID + "\x00" + key
}

// cloneSale copies a stored sale so callers cannot change the record.
func cloneSale(s *sales.Sale) *sales.Sale {
	cp := *s
	if s.IdempotencyKey != nil {
		key := *s.IdempotencyKey
		cp.IdempotencyKey = &key
	}
	return &cp
}

// localTx reads through to the store (already locked by WithinTx) and
// stages its writes.
type localTx struct {
	store    *LocalStorage
	products map[string]inventory.Product
	sales    []*sales.Sale
}

func (t *localTx) Product(_ context.Context, id string) (*inventory.Product, error) {
	if p, ok := t.products[id]; ok {
		return &p, nil
	}
	p, ok := t.store.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (t *localTx) ReserveAndDecrement(ctx context.Context, id string, quantity int) (*inventory.Product, error) {
	p, err := t.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Decrement(quantity); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	t.products[id] = *p
	return p, nil
}

func (t *localTx) Set(_ context.Context, sale *sales.Sale) error {
	if sale.ID == "" {
		return sales.ErrEmptyID
	}
	if sale.IdempotencyKey != nil {
		if _, err := t.FindByIdempotencyKey(context.Background(), sale.AdminID, *sale.IdempotencyKey); err == nil {
			return sales.ErrDuplicateIdempotencyKey
		}
	}
	t.sales = append(t.sales, cloneSale(sale))
	return nil
}

func (t *localTx) Read(_ context.Context, id string) (*sales.Sale, error) {
	for _, s := range t.sales {
		if s.ID == id {
			return cloneSale(s), nil
		}
	}
	s, ok := t.store.sales[id]
	if !ok {
		return nil, sales.ErrNotFound
	}
	return cloneSale(s), nil
}

func (t *localTx) GetAll(_ context.Context) ([]*sales.Sale, error) {
	all := make([]*sales.Sale, 0, len(t.sales)+len(t.store.sales))
	for _, s := range t.sales {
		all = append(all, cloneSale(s))
	}
	for _, s := range t.store.sales {
		all = append(all, cloneSale(s))
	}
	return all, nil
}

func (t *localTx) FindByIdempotencyKey(_ context.Context, adminID, key string) (*sales.Sale, error) {
	for _, s := range t.sales {
		if s.AdminID == adminID && s.IdempotencyKey != nil && *s.IdempotencyKey == key {
			return cloneSale(s), nil
		}
	}
	s, err := t.store.saleByKey(adminID, key)
	if err != nil {
		return nil, err
	}
	return cloneSale(s), nil
}
