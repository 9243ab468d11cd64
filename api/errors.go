package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/notifications"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
)

// writeError maps domain errors to HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{"message": insufficient.Error(), "available": insufficient.Available})
	case errors.Is(err, sales.ErrValidation),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, reports.ErrInvalidPeriod):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, inventory.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
	case errors.Is(err, sales.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Sale not found"})
	case errors.Is(err, notifications.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Notification not found"})
	case errors.Is(err, notifications.ErrMissingAdmin):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: missing admin identity."})
	case errors.Is(err, sales.ErrIdempotencyKeyReused):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request aborted", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "request cancelled"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}
