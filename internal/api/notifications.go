// internal/api/notifications.go
package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"studio-notify/internal/domain/notification"
)

// ListNotifications fetches one page of the identity's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, page, limit int) ([]notification.Notification, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("page", strconv.Itoa(page))

	var resp notification.ListResponse
	if err := c.get(ctx, "/notifications?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if resp.Notifications == nil {
		resp.Notifications = []notification.Notification{}
	}
	return resp.Notifications, nil
}

// Stats fetches the aggregate counters.
func (c *Client) Stats(ctx context.Context) (notification.Stats, error) {
	var stats notification.Stats
	if err := c.get(ctx, "/notifications/stats", &stats); err != nil {
		return notification.Stats{}, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return stats, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.patch(ctx, "/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/notifications/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}
