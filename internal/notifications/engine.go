package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/sales"
)

// ErrMissingAdmin is returned when a sale event carries no owning admin.
var ErrMissingAdmin = errors.New("notification owner is required")

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 50 * time.Millisecond
)

// Engine decides which notifications a committed sale produces, stores them
// and hands them to the live publisher.
type Engine struct {
	storage        Storage
	publisher      Publisher
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
	maxRetries     uint64
	initialBackoff time.Duration

	// adminID -> *sync.Mutex
	locks sync.Map
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineTracer sets the tracer used for evaluation spans.
func WithEngineTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithEngineClock overrides the creation time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRetries bounds how often a failed insert is retried. A non-positive
// initial interval keeps the default.
func WithRetries(max uint64, initial time.Duration) EngineOption {
	return func(e *Engine) {
		e.maxRetries = max
		if initial > 0 {
			e.initialBackoff = initial
		}
	}
}

// NewEngine creates an Engine. A nil publisher disables live delivery.
func NewEngine(storage Storage, publisher Publisher, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		storage:        storage,
		publisher:      publisher,
		logger:         logger,
		tracer:         noop.NewTracerProvider().Tracer("notifications"),
		now:            time.Now,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SaleRecorded evaluates a committed sale. Failures are logged only: the
// sale is already durable and must not be affected.
func (e *Engine) SaleRecorded(ctx context.Context, rec sales.Recorded) {
	if _, err := e.Evaluate(ctx, rec); err != nil {
		e.logger.Error("failed to persist sale notifications",
			zap.String("admin_id", rec.AdminID),
			zap.String("sale_id", rec.Sale.ID),
			zap.Error(err),
		)
	}
}

// Evaluate stores the notifications planned for rec and publishes each one
// that was stored. Evaluations for the same admin never interleave, so the
// channel sees notifications in creation order.
func (e *Engine) Evaluate(ctx context.Context, rec sales.Recorded) ([]*Notification, error) {
	if rec.AdminID == "" {
		return nil, ErrMissingAdmin
	}
	ctx, span := e.tracer.Start(ctx, "notifications.Evaluate", trace.WithAttributes(
		attribute.String("notification.admin_id", rec.AdminID),
		attribute.String("sale.id", rec.Sale.ID),
	))
	defer span.End()

	mu := e.adminLock(rec.AdminID)
	mu.Lock()
	defer mu.Unlock()

	var (
		created []*Notification
		err     error
	)
	for _, n := range Plan(rec) {
		n.ID = uuid.NewString()
		n.CreatedAt = e.now().UTC()
		if err = e.persist(ctx, n); err != nil {
			err = fmt.Errorf("store %s notification: %w", n.Type, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			break
		}
		created = append(created, n)
	}

	for _, n := range created {
		e.publish(ctx, n)
	}
	span.SetAttributes(attribute.Int("notification.count", len(created)))
	return created, err
}

// Plan returns the unsaved notifications a committed sale produces: always
// one sale notice, plus a stock alert when the product is low or out.
func Plan(rec sales.Recorded) []*Notification {
	title, message := SaleNotice(rec.Sale)
	planned := []*Notification{{
		AdminID:     rec.AdminID,
		Type:        TypeSale,
		Title:       title,
		Message:     message,
		ReferenceID: rec.Sale.ID,
	}}
	if title, message, ok := StockAlert(rec.Product); ok {
		planned = append(planned, &Notification{
			AdminID:     rec.AdminID,
			Type:        TypeStock,
			Title:       title,
			Message:     message,
			ReferenceID: rec.Product.ID,
		})
	}
	return planned
}

// SaleNotice builds the content of the notification every sale produces.
func SaleNotice(s *sales.Sale) (title, message string) {
	return "New Sale Recorded", fmt.Sprintf("%d x %s sold for %s.", s.Quantity, s.ProductName, s.TotalAmount.StringFixed(2))
}

// StockAlert derives the stock alert for p from its current inStock value.
// ok is false while the product is above the low stock threshold.
func StockAlert(p *inventory.Product) (title, message string, ok bool) {
	if p == nil || p.InStock > inventory.LowStockThreshold {
		return "", "", false
	}
	if p.InStock <= 0 {
		return "Out of Stock Alert", fmt.Sprintf("%s is out of stock.", p.Name), true
	}
	return "Low Stock Alert", fmt.Sprintf("%s stock is low (%d left).", p.Name, p.InStock), true
}

func (e *Engine) persist(ctx context.Context, n *Notification) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.maxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := e.storage.Create(ctx, n)
		if errors.Is(err, ErrAlreadyExists) {
			// an earlier attempt landed
			return nil
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		e.logger.Warn("retrying notification insert",
			zap.String("notification_id", n.ID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func (e *Engine) publish(ctx context.Context, n *Notification) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, n); err != nil {
		e.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("admin_id", n.AdminID),
			zap.Error(err),
		)
	}
}

func (e *Engine) adminLock(adminID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(adminID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
