package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_backoffice/internal/reports"
)

type reportHandler struct {
	service *reports.Service
	logger  *zap.Logger
}

func NewReportHandler(service *reports.Service, logger *zap.Logger) *reportHandler {
	return &reportHandler{service: service, logger: logger}
}

// handleMonthly handles GET /reports/monthly-sales?month=&year=.
func (h *reportHandler) handleMonthly(ctx *gin.Context) {
	month, err := optionalInt(ctx.Query("month"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "month must be a number"})
		return
	}
	year, err := optionalInt(ctx.Query("year"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "year must be a number"})
		return
	}

	summary, err := h.service.Monthly(ctx.Request.Context(), month, year)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// handleSummary handles GET /reports/sales-summary?from=&to=.
func (h *reportHandler) handleSummary(ctx *gin.Context) {
	from, err := parseDate(ctx.Query("from"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	to, err := parseDate(ctx.Query("to"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	summary, err := h.service.SalesSummary(ctx.Request.Context(), from, to)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

func optionalInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// parseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("from and to are required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD", v)
	}
	return t, nil
}
