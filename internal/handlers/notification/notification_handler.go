// internal/handlers/notification/notification_handler.go
package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studio-notify/internal/domain/notification"
	"studio-notify/internal/pkg/response"
	"studio-notify/internal/store"
)

// Service is the notification service as seen by the bridge.
type Service interface {
	Reconcile(ctx context.Context) error
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Remove(ctx context.Context, id string) error
}

type NotificationHandler struct {
	service Service
	store   *store.Store
	logger  *zap.Logger
}

func NewNotificationHandler(service Service, st *store.Store, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		store:   st,
		logger:  logger,
	}
}

// GetNotifications returns the current store snapshot. ?unread=true keeps
// only unread records and ?limit=n caps the list.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	snap := h.store.Snapshot()

	list := snap.Notifications
	if unread, _ := strconv.ParseBool(c.Query("unread")); unread {
		filtered := make([]notification.Notification, 0, snap.UnreadCount)
		for _, n := range list {
			if !n.IsRead {
				filtered = append(filtered, n)
			}
		}
		list = filtered
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit < len(list) {
		list = list[:limit]
	}

	snap.Notifications = list
	response.Success(c, http.StatusOK, "notifications retrieved", snap)
}

// GetUnreadCount returns the unread counter and connectivity flag.
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	snap := h.store.Snapshot()
	response.Success(c, http.StatusOK, "unread count retrieved", gin.H{
		"unreadCount": snap.UnreadCount,
		"isConnected": snap.IsConnected,
	})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.MarkAsRead(c.Request.Context(), id); err != nil {
		h.logger.Warn("mark as read failed", zap.String("id", id), zap.Error(err))
		response.FromError(c, "failed to mark notification as read", err)
		return
	}
	response.Success(c, http.StatusOK, "notification marked as read", nil)
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.service.MarkAllAsRead(c.Request.Context()); err != nil {
		h.logger.Warn("mark all as read failed", zap.Error(err))
		response.FromError(c, "failed to mark all notifications as read", err)
		return
	}
	response.Success(c, http.StatusOK, "all notifications marked as read", nil)
}

// DeleteNotification deletes a notification
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Remove(c.Request.Context(), id); err != nil {
		h.logger.Warn("delete failed", zap.String("id", id), zap.Error(err))
		response.FromError(c, "failed to delete notification", err)
		return
	}
	response.Success(c, http.StatusOK, "notification deleted", nil)
}

// Refresh reconciles the store with the server and returns the result.
func (h *NotificationHandler) Refresh(c *gin.Context) {
	if err := h.service.Reconcile(c.Request.Context()); err != nil {
		response.FromError(c, "failed to refresh notifications", err)
		return
	}
	response.Success(c, http.StatusOK, "notifications refreshed", h.store.Snapshot())
}
