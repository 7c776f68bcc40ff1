// internal/store/reducer.go
package store

import (
	"time"

	"studio-notify/internal/domain/notification"
)

// DefaultLimit bounds the number of records a store keeps.
const DefaultLimit = 100

// State is the notification state of one session. Reducers never mutate the
// slice they are given, so a State handed out as a snapshot stays stable.
type State struct {
	Notifications []notification.Notification `json:"notifications"`
	UnreadCount   int                         `json:"unreadCount"`
	IsConnected   bool                        `json:"isConnected"`
	LastUpdated   time.Time                   `json:"lastUpdated"`
}

// Add unshifts n and evicts the oldest records beyond limit. A record whose
// id or correlation key is already present is ignored.
func Add(s State, n notification.Notification, limit int, now time.Time) (State, bool) {
	for _, existing := range s.Notifications {
		if existing.ID == n.ID {
			return s, false
		}
		if n.CorrelationKey != "" && existing.CorrelationKey == n.CorrelationKey {
			return s, false
		}
	}

	list := make([]notification.Notification, 0, len(s.Notifications)+1)
	list = append(list, n)
	list = append(list, s.Notifications...)

	unread := s.UnreadCount
	if !n.IsRead {
		unread++
	}

	if limit > 0 && len(list) > limit {
		for _, evicted := range list[limit:] {
			if !evicted.IsRead {
				unread--
			}
		}
		list = list[:limit]
	}

	s.Notifications = list
	s.UnreadCount = max(unread, 0)
	s.LastUpdated = now
	return s, true
}

// MarkRead flips one unread record to read.
func MarkRead(s State, id string, now time.Time) (State, bool) {
	idx := indexOf(s.Notifications, id)
	if idx < 0 || s.Notifications[idx].IsRead {
		return s, false
	}

	list := clone(s.Notifications)
	list[idx].IsRead = true

	s.Notifications = list
	s.UnreadCount = max(s.UnreadCount-1, 0)
	s.LastUpdated = now
	return s, true
}

func MarkAllRead(s State, now time.Time) State {
	list := clone(s.Notifications)
	for i := range list {
		list[i].IsRead = true
	}

	s.Notifications = list
	s.UnreadCount = 0
	s.LastUpdated = now
	return s
}

// Remove drops the record with id, adjusting the unread counter if needed.
func Remove(s State, id string, now time.Time) (State, bool) {
	idx := indexOf(s.Notifications, id)
	if idx < 0 {
		return s, false
	}

	wasUnread := !s.Notifications[idx].IsRead

	list := make([]notification.Notification, 0, len(s.Notifications)-1)
	list = append(list, s.Notifications[:idx]...)
	list = append(list, s.Notifications[idx+1:]...)

	s.Notifications = list
	if wasUnread {
		s.UnreadCount = max(s.UnreadCount-1, 0)
	}
	s.LastUpdated = now
	return s, true
}

// Sync replaces the records and the unread counter wholesale with the
// authoritative copy. Duplicate ids in the incoming list keep their first
// occurrence.
func Sync(s State, list []notification.Notification, unreadCount int, limit int, now time.Time) State {
	seen := make(map[string]struct{}, len(list))
	replaced := make([]notification.Notification, 0, len(list))
	for _, n := range list {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		replaced = append(replaced, n)
		if limit > 0 && len(replaced) == limit {
			break
		}
	}

	s.Notifications = replaced
	s.UnreadCount = max(unreadCount, 0)
	s.LastUpdated = now
	return s
}

// SyncUnreadCount replaces only the unread counter.
func SyncUnreadCount(s State, unreadCount int, now time.Time) State {
	s.UnreadCount = max(unreadCount, 0)
	s.LastUpdated = now
	return s
}

func SetConnected(s State, connected bool) State {
	s.IsConnected = connected
	return s
}

func indexOf(list []notification.Notification, id string) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func clone(list []notification.Notification) []notification.Notification {
	out := make([]notification.Notification, len(list))
	copy(out, list)
	return out
}
