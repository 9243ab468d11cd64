package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"api_backoffice/internal/sales"
)

const idempotencyHeader = "Idempotency-Key"

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService          *sales.Service
	logger                *zap.Logger
	requireIdempotencyKey bool
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger, requireIdempotencyKey bool) *salesHandler {
	return &salesHandler{
		salesService:          salesService,
		logger:                logger,
		requireIdempotencyKey: requireIdempotencyKey,
	}
}

type createSaleRequest struct {
	ProductID       string           `json:"productId" binding:"required"`
	Quantity        int              `json:"quantity" binding:"required,gt=0"`
	UnitPrice       *decimal.Decimal `json:"unitPrice"`
	TransactionDate *time.Time       `json:"transactionDate"`
}

// handleCreateSale handles the POST /sales endpoint.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req createSaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"message": bindMessage(err)})
		return
	}

	key := strings.TrimSpace(ctx.GetHeader(idempotencyHeader))
	if key == "" && h.requireIdempotencyKey {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": idempotencyHeader + " header is required"})
		return
	}

	sale, err := h.salesService.CreateSale(ctx.Request.Context(), sales.CreateSaleInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		TransactionDate: req.TransactionDate,
		AdminID:         adminFrom(ctx).ID,
		IdempotencyKey:  key,
	})
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}

	ctx.JSON(http.StatusCreated, sale)
}

// handleListSales handles GET /sales.
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	all, err := h.salesService.ListSales(ctx.Request.Context())
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	if all == nil {
		all = []*sales.Sale{}
	}
	ctx.JSON(http.StatusOK, all)
}

// handleGetSale handles GET /sales/:id.
func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.salesService.GetSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

// handleGetProduct handles GET /products/:id.
func (h *salesHandler) handleGetProduct(ctx *gin.Context) {
	product, err := h.salesService.Product(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", jsonName(fe.Field())))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", jsonName(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", jsonName(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}

func jsonName(field string) string {
	switch field {
	case "ProductID":
		return "productId"
	case "":
		return field
	default:
		return strings.ToLower(field[:1]) + field[1:]
	}
}
