// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"

	notifyHandler "studio-notify/internal/handlers/notification"
	sessionHandler "studio-notify/internal/handlers/session"
	wsHandler "studio-notify/internal/handlers/websocket"
	"studio-notify/internal/middleware"
)

type Handlers struct {
	NotifHandler   *notifyHandler.NotificationHandler
	SessionHandler *sessionHandler.SessionHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	// Status reports liveness details for the health check.
	Status func() gin.H
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if h.Status != nil {
			for k, v := range h.Status() {
				body[k] = v
			}
		}
		c.JSON(200, body)
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Session ====================
	sessions := api.Group("/session")
	sessions.Use(h.AuthMiddleware.Auth())
	{
		sessions.POST("", h.SessionHandler.Start)
		sessions.DELETE("", h.SessionHandler.End)
		sessions.GET("", h.AuthMiddleware.RequireSession(), h.SessionHandler.Get)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications")
	notifications.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireSession())
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/count", h.NotifHandler.GetUnreadCount)
		notifications.PATCH("/read-all", h.NotifHandler.MarkAllAsRead)
		notifications.PATCH("/:id/read", h.NotifHandler.MarkAsRead)
		notifications.DELETE("/:id", h.NotifHandler.DeleteNotification)
		notifications.POST("/refresh", h.NotifHandler.Refresh)
	}

	// ==================== Bridge stats ====================
	api.GET("/ws/stats", h.AuthMiddleware.Auth(), h.WSHandler.GetStats)
}
