package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_backoffice/internal/notifications"
)

type notificationHandler struct {
	service *notifications.Service
	logger  *zap.Logger
}

func NewNotificationHandler(service *notifications.Service, logger *zap.Logger) *notificationHandler {
	return &notificationHandler{service: service, logger: logger}
}

func (h *notificationHandler) handleList(ctx *gin.Context) {
	list, err := h.service.List(ctx.Request.Context(), adminFrom(ctx).ID)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	if list == nil {
		list = []*notifications.Notification{}
	}
	ctx.JSON(http.StatusOK, list)
}

func (h *notificationHandler) handleUnreadCount(ctx *gin.Context) {
	n, err := h.service.UnreadCount(ctx.Request.Context(), adminFrom(ctx).ID)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *notificationHandler) handleMarkRead(ctx *gin.Context) {
	if err := h.service.MarkRead(ctx.Request.Context(), ctx.Param("id"), adminFrom(ctx).ID); err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *notificationHandler) handleMarkAllRead(ctx *gin.Context) {
	n, err := h.service.MarkAllRead(ctx.Request.Context(), adminFrom(ctx).ID)
	if err != nil {
		writeError(ctx, h.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}
