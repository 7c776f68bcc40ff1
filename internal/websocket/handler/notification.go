// internal/websocket/handler/notification.go
package handler

import (
	"context"
	"fmt"

	wstypes "studio-notify/internal/domain/websocket"
	"studio-notify/internal/store"
	ws "studio-notify/internal/websocket"
)

// Mutator is the part of the notification service the bridge drives.
type Mutator interface {
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Remove(ctx context.Context, id string) error
}

type NotificationHandler struct {
	service Mutator
	store   *store.Store
}

func NewNotificationHandler(service Mutator, st *store.Store) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		store:   st,
	}
}

// SupportedEvents returns events this handler supports
func (h *NotificationHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeNotificationRead,
		wstypes.EventTypeNotificationReadAll,
		wstypes.EventTypeNotificationDelete,
		wstypes.EventTypeNotificationList,
		wstypes.EventTypeNotificationCount,
	}
}

// HandleMessage processes notification-related messages
func (h *NotificationHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.InboundMessage) error {
	switch msg.Type {
	case wstypes.EventTypeNotificationRead:
		return h.handleMarkAsRead(ctx, client, msg)

	case wstypes.EventTypeNotificationReadAll:
		return h.handleMarkAllAsRead(ctx, client)

	case wstypes.EventTypeNotificationDelete:
		return h.handleDelete(ctx, client, msg)

	case wstypes.EventTypeNotificationList:
		return h.handleList(client)

	case wstypes.EventTypeNotificationCount:
		return h.handleCount(client)

	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

type idRequest struct {
	ID string `json:"id"`
}

func (h *NotificationHandler) handleMarkAsRead(ctx context.Context, client *ws.Client, msg *wstypes.InboundMessage) error {
	var req idRequest
	if err := msg.DecodeData(&req); err != nil || req.ID == "" {
		client.SendError("invalid_request", "Invalid mark as read request", "id is required")
		return nil
	}

	// The store already reflects the change; a failed request surfaces as an alert.
	if err := h.service.MarkAsRead(ctx, req.ID); err != nil {
		client.SendError("mark_read_failed", "Failed to mark notification as read", err.Error())
		return nil
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationRead, map[string]interface{}{
		"id":          req.ID,
		"success":     true,
		"unreadCount": h.store.Snapshot().UnreadCount,
	}))
	return nil
}

func (h *NotificationHandler) handleMarkAllAsRead(ctx context.Context, client *ws.Client) error {
	if err := h.service.MarkAllAsRead(ctx); err != nil {
		client.SendError("mark_all_read_failed", "Failed to mark all as read", err.Error())
		return nil
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationReadAll, map[string]interface{}{
		"success":     true,
		"unreadCount": h.store.Snapshot().UnreadCount,
	}))
	return nil
}

func (h *NotificationHandler) handleDelete(ctx context.Context, client *ws.Client, msg *wstypes.InboundMessage) error {
	var req idRequest
	if err := msg.DecodeData(&req); err != nil || req.ID == "" {
		client.SendError("invalid_request", "Invalid delete request", "id is required")
		return nil
	}

	if err := h.service.Remove(ctx, req.ID); err != nil {
		client.SendError("delete_failed", "Failed to delete notification", err.Error())
		return nil
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationDelete, map[string]interface{}{
		"id":      req.ID,
		"success": true,
	}))
	return nil
}

func (h *NotificationHandler) handleList(client *ws.Client) error {
	snap := h.store.Snapshot()
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationList, map[string]interface{}{
		"notifications": snap.Notifications,
		"count":         len(snap.Notifications),
	}))
	return nil
}

func (h *NotificationHandler) handleCount(client *ws.Client) error {
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeNotificationCount, map[string]interface{}{
		"unreadCount": h.store.Snapshot().UnreadCount,
	}))
	return nil
}
