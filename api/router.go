package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_backoffice/internal/notifications"
	"api_backoffice/internal/realtime"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Sales                 *sales.Service
	Notifications         *notifications.Service
	Reports               *reports.Service
	Hub                   *realtime.Hub
	Auth                  Authenticator
	Logger                *zap.Logger
	RequireIdempotencyKey bool
}

// InitRoutes registers every endpoint on the given Gin engine. All routes
// except /ping and /ws sit behind RequireAdmin; /ws authenticates itself so
// browsers can pass the token as a query parameter.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	salesHandler := NewSalesHandler(deps.Sales, logger, deps.RequireIdempotencyKey)
	notificationHandler := NewNotificationHandler(deps.Notifications, logger)
	reportHandler := NewReportHandler(deps.Reports, logger)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	if deps.Hub != nil {
		e.GET("/ws", NewSocketHandler(deps.Hub, deps.Auth, logger).handleSocket)
	}

	admin := e.Group("/", RequireAdmin(deps.Auth))

	admin.POST("/sales", salesHandler.handleCreateSale)
	admin.GET("/sales", salesHandler.handleListSales)
	admin.GET("/sales/:id", salesHandler.handleGetSale)
	admin.GET("/products/:id", salesHandler.handleGetProduct)

	admin.GET("/notifications", notificationHandler.handleList)
	admin.GET("/notifications/unread-count", notificationHandler.handleUnreadCount)
	admin.PATCH("/notifications/read-all", notificationHandler.handleMarkAllRead)
	admin.PATCH("/notifications/:id/read", notificationHandler.handleMarkRead)

	admin.GET("/reports/monthly-sales", reportHandler.handleMonthly)
	admin.GET("/reports/sales-summary", reportHandler.handleSummary)
}
