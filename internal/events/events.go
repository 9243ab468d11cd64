// Package events publishes committed sales to an external broker so other
// services can react to them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"api_backoffice/internal/sales"
)

const defaultQueueSize = 256

// SaleRecorded is the broker payload emitted once per committed sale.
type SaleRecorded struct {
	SaleID          string          `json:"saleId"`
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TransactionDate time.Time       `json:"transactionDate"`
	AdminID         string          `json:"adminId"`
	InStock         int             `json:"inStock"`
	Status          string          `json:"status"`
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event SaleRecorded) error
	Close() error
}

// NewSaleRecorded builds the event for a committed sale.
func NewSaleRecorded(rec sales.Recorded) SaleRecorded {
	e := SaleRecorded{
		SaleID:          rec.Sale.ID,
		ProductID:       rec.Sale.ProductID,
		ProductName:     rec.Sale.ProductName,
		Quantity:        rec.Sale.Quantity,
		UnitPrice:       rec.Sale.UnitPrice,
		TotalAmount:     rec.Sale.TotalAmount,
		TransactionDate: rec.Sale.TransactionDate,
		AdminID:         rec.AdminID,
	}
	if rec.Product != nil {
		e.InStock = rec.Product.InStock
		e.Status = string(rec.Product.Status)
	}
	return e
}

// Relay forwards committed sales to a Publisher from its own worker, so a
// slow or hung broker never holds up the sale request. The queue is bounded;
// when it is full the event is dropped and logged. A broker failure never
// reaches the sale.
type Relay struct {
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan SaleRecorded
	done   chan struct{}
	base   context.Context
	cancel context.CancelFunc
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithQueueSize sets how many events may wait for the broker.
func WithQueueSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.queue = make(chan SaleRecorded, n)
		}
	}
}

// WithPublishTimeout bounds a single publish call.
func WithPublishTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRelay creates a Relay and starts its worker. Close stops it.
func NewRelay(publisher Publisher, logger *zap.Logger, opts ...RelayOption) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
		queue:     make(chan SaleRecorded, defaultQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.base, r.cancel = context.WithCancel(context.Background())
	go r.run()
	return r
}

// SaleRecorded implements sales.Listener. It only enqueues the event.
func (r *Relay) SaleRecorded(_ context.Context, rec sales.Recorded) {
	event := NewSaleRecorded(rec)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("relay closed, dropping sale event", zap.String("sale_id", event.SaleID))
		return
	}
	select {
	case r.queue <- event:
	default:
		r.logger.Error("sale event queue full, dropping event",
			zap.String("sale_id", event.SaleID),
			zap.String("product_id", event.ProductID),
		)
	}
}

// Close stops accepting events and waits for the queued ones to be
// published. When ctx ends first, in-flight and remaining publishes are
// cancelled.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return ctx.Err()
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for event := range r.queue {
		r.publish(event)
	}
}

func (r *Relay) publish(event SaleRecorded) {
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Error("failed to publish sale event",
			zap.String("sale_id", event.SaleID),
			zap.String("product_id", event.ProductID),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("sale event published", zap.String("sale_id", event.SaleID))
}
