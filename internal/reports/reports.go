// Package reports serves aggregate read-only views over recorded sales.
// It reads sale rows through its own query and never touches the sale
// transaction path.
package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidPeriod is returned for a malformed reporting period.
var ErrInvalidPeriod = errors.New("invalid reporting period")

// Totals aggregates a set of sales.
type Totals struct {
	Value        decimal.Decimal
	Units        int64
	Transactions int64
}

// Reader is the read-model query over sale rows.
type Reader interface {
	// SummarizeSales aggregates sales with a transaction date in [from, to).
	SummarizeSales(ctx context.Context, from, to time.Time) (Totals, error)
}

// Summary is the response shape of a date range report.
type Summary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TotalSalesValue  decimal.Decimal `json:"totalSalesValue"`
	TotalUnitsSold   int64           `json:"totalUnitsSold"`
	TransactionCount int64           `json:"transactionCount"`
}

// MonthlySummary is the response shape of a calendar month report.
type MonthlySummary struct {
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	TotalSalesValue  decimal.Decimal `json:"totalSalesValue"`
	TotalUnitsSold   int64           `json:"totalUnitsSold"`
	TransactionCount int64           `json:"transactionCount"`
}

// Service answers report queries.
type Service struct {
	reader   Reader
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
}

// NewService creates a Service computing calendar periods in UTC.
func NewService(reader Reader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, logger: logger, now: time.Now, location: time.UTC}
}

// SalesSummary aggregates the sales in [from, to).
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time) (*Summary, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidPeriod)
	}
	totals, err := s.reader.SummarizeSales(ctx, from, to)
	if err != nil {
		s.logger.Error("failed to summarize sales", zap.Time("from", from), zap.Time("to", to), zap.Error(err))
		return nil, fmt.Errorf("summarize sales: %w", err)
	}
	return &Summary{
		From:             from,
		To:               to,
		TotalSalesValue:  totals.Value.Round(2),
		TotalUnitsSold:   totals.Units,
		TransactionCount: totals.Transactions,
	}, nil
}

// Monthly aggregates one calendar month. Zero month or year default to the
// current month or year.
func (s *Service) Monthly(ctx context.Context, month, year int) (*MonthlySummary, error) {
	now := s.now().In(s.location)
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidPeriod)
	}
	if year < 1 {
		return nil, fmt.Errorf("%w: year must be positive", ErrInvalidPeriod)
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.location)
	summary, err := s.SalesSummary(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	return &MonthlySummary{
		Month:            month,
		Year:             year,
		TotalSalesValue:  summary.TotalSalesValue,
		TotalUnitsSold:   summary.TotalUnitsSold,
		TransactionCount: summary.TransactionCount,
	}, nil
}
