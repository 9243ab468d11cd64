package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"api_backoffice/internal/inventory"
)

var (
	// ErrValidation marks malformed sale input.
	ErrValidation = errors.New("validation error")

	// ErrPersistence marks a storage failure; the sale was rolled back.
	ErrPersistence = errors.New("persistence failure")

	// ErrIdempotencyKeyReused is returned when a key is replayed with a
	// different product or quantity than the sale it first created.
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different sale")
)

// Listener is notified after a sale has been committed. Listeners own their
// failures; nothing they do can affect the committed sale.
type Listener interface {
	SaleRecorded(ctx context.Context, rec Recorded)
}

// Service turns sale requests into committed sales plus ledger mutations.
type Service struct {
	repo      Repository
	logger    *zap.Logger
	tracer    trace.Tracer
	listeners []Listener
	now       func() time.Time
	inflight  singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithListeners registers post-commit listeners, called in order.
func WithListeners(l ...Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l...) }
}

// WithTracer sets the tracer used for sale spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithClock overrides the time source used for default transaction dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		tracer: noop.NewTracerProvider().Tracer("sales"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type outcome struct {
	sale     *Sale
	product  *inventory.Product
	replayed bool
}

// CreateSale validates and applies a sale. On success exactly one Sale row
// exists and the product's inStock was decremented by the same transaction;
// on any failure neither happened.
//
// A request carrying an idempotency key the same admin already recorded
// returns the sale it first created without touching the ledger again.
func (s *Service) CreateSale(ctx context.Context, in CreateSaleInput) (*Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.CreateSale", trace.WithAttributes(
		attribute.String("sale.product_id", in.ProductID),
		attribute.Int("sale.quantity", in.Quantity),
		attribute.String("sale.admin_id", in.AdminID),
	))
	defer span.End()

	if err := validate(&in); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		out *outcome
		err error
	)
	if in.IdempotencyKey == "" {
		out, err = s.apply(ctx, in)
	} else {
		var v interface{}
		v, err, _ = s.inflight.Do(in.AdminID+"\x00"+in.IdempotencyKey, func() (interface{}, error) {
			return s.apply(ctx, in)
		})
		if err == nil {
			out = v.(*outcome)
			if !sameRequest(out.sale, in) {
				err = ErrIdempotencyKeyReused
			}
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("sale rejected",
			zap.String("product_id", in.ProductID),
			zap.Int("quantity", in.Quantity),
			zap.String("admin_id", in.AdminID),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("sale.id", out.sale.ID), attribute.Bool("sale.replayed", out.replayed))
	return out.sale, nil
}

// apply records the sale and, when it is new, notifies the listeners.
func (s *Service) apply(ctx context.Context, in CreateSaleInput) (*outcome, error) {
	out, err := s.record(ctx, in)
	if err != nil {
		return nil, err
	}
	if out.replayed {
		s.logger.Info("sale replayed", zap.String("sale_id", out.sale.ID), zap.String("idempotency_key", in.IdempotencyKey))
		return out, nil
	}

	s.logger.Info("sale created",
		zap.String("sale_id", out.sale.ID),
		zap.String("product_id", out.product.ID),
		zap.Int("quantity", out.sale.Quantity),
		zap.Int("in_stock", out.product.InStock),
		zap.String("status", string(out.product.Status)),
	)

	rec := Recorded{AdminID: in.AdminID, Sale: out.sale, Product: out.product}
	detached := context.WithoutCancel(ctx)
	for _, l := range s.listeners {
		l.SaleRecorded(detached, rec)
	}
	return out, nil
}

// record runs the all-or-nothing part of a sale.
func (s *Service) record(ctx context.Context, in CreateSaleInput) (*outcome, error) {
	out := &outcome{}
	err := s.repo.WithinTx(ctx, func(tx Tx) error {
		if in.IdempotencyKey != "" {
			existing, err := tx.FindByIdempotencyKey(ctx, in.AdminID, in.IdempotencyKey)
			if err == nil {
				out.sale, out.replayed = existing, true
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		product, err := tx.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		unitPrice := product.Price
		if in.UnitPrice != nil {
			unitPrice = *in.UnitPrice
		}
		if !unitPrice.IsPositive() {
			return fmt.Errorf("%w: unit price must be greater than zero", ErrValidation)
		}

		updated, err := tx.ReserveAndDecrement(ctx, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}

		date := s.now()
		if in.TransactionDate != nil {
			date = *in.TransactionDate
		}
		sale := &Sale{
			ID:              uuid.NewString(),
			ProductID:       updated.ID,
			ProductName:     updated.Name,
			Quantity:        in.Quantity,
			UnitPrice:       unitPrice,
			TotalAmount:     unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
			TransactionDate: date.UTC(),
			AdminID:         in.AdminID,
			CreatedAt:       s.now().UTC(),
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			sale.IdempotencyKey = &key
		}
		if err := tx.Set(ctx, sale); err != nil {
			return err
		}
		out.sale, out.product = sale, updated
		return nil
	})

	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// Another process committed the same key first.
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, in.AdminID, in.IdempotencyKey)
		if findErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, findErr)
		}
		return &outcome{sale: existing, replayed: true}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListSales returns every sale, newest transaction date first.
func (s *Service) ListSales(ctx context.Context) ([]*Sale, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list sales", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return all, nil
}

// GetSale returns a single sale or ErrNotFound.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	sale, err := s.repo.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("failed to read sale", zap.String("sale_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return sale, nil
}

// Product returns the current ledger record of a product.
func (s *Service) Product(ctx context.Context, id string) (*inventory.Product, error) {
	p, err := s.repo.Product(ctx, id)
	if err != nil && !errors.Is(err, inventory.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return p, err
}

func validate(in *CreateSaleInput) error {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	switch {
	case in.ProductID == "":
		return fmt.Errorf("%w: productId is required", ErrValidation)
	case in.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	case in.AdminID == "":
		return fmt.Errorf("%w: admin identity is required", ErrValidation)
	case in.UnitPrice != nil && !in.UnitPrice.IsPositive():
		return fmt.Errorf("%w: unit price must be greater than zero", ErrValidation)
	}
	if in.UnitPrice != nil {
		p := in.UnitPrice.Round(2)
		in.UnitPrice = &p
	}
	return nil
}

func sameRequest(sale *Sale, in CreateSaleInput) bool {
	return sale.AdminID == in.AdminID && sale.ProductID == in.ProductID && sale.Quantity == in.Quantity
}

// classify keeps domain errors as they are and marks everything else as a
// persistence failure.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
