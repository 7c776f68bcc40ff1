// internal/store/store.go
package store

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"studio-notify/internal/domain/notification"
)

type EventKind string

const (
	EventAdded      EventKind = "added"
	EventUpdated    EventKind = "updated"
	EventRemoved    EventKind = "removed"
	EventSynced     EventKind = "synced"
	EventConnection EventKind = "connection"
	EventReset      EventKind = "reset"
)

// Event is delivered to subscribers after every state change.
type Event struct {
	Kind         EventKind
	Notification *notification.Notification
	State        State
}

type Listener func(Event)

type Option func(*Store)

// WithLimit overrides the record bound.
func WithLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Store owns the notification state of the current session. All mutations
// go through its methods; listeners run after the lock is released, in the
// order the mutations were applied.
type Store struct {
	mu        sync.Mutex
	state     State
	limit     int
	now       func() time.Time
	newID     func() string
	listeners []subscription
	nextID    int

	// notifyMu keeps listener delivery in mutation order.
	notifyMu sync.Mutex
}

func New(opts ...Option) *Store {
	s := &Store{
		state: State{Notifications: []notification.Notification{}},
		limit: DefaultLimit,
		now:   time.Now,
		newID: LocalID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LocalID returns an id for a record that has not been persisted by the server.
func LocalID() string {
	return "local-" + ulid.Make().String()
}

// AddNotification fills in the defaults of d and unshifts it. It reports
// false when a record with the same id or correlation key is already held.
func (s *Store) AddNotification(d notification.Draft) (notification.Notification, bool) {
	now := s.now()

	n := notification.Notification{
		ID:             d.ID,
		Type:           d.Type,
		Title:          d.Title,
		Message:        d.Message,
		Timestamp:      d.Timestamp,
		IsRead:         d.IsRead,
		Priority:       d.Priority,
		Data:           d.Data,
		CorrelationKey: d.CorrelationKey,
	}
	if n.ID == "" {
		n.ID = s.newID()
	}
	if n.Type == "" {
		n.Type = notification.TypeGeneral
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	if n.Priority == "" {
		n.Priority = notification.DefaultPriority(n.Type)
	}

	var added bool
	ev := s.apply(func(st State) (State, bool) {
		st, added = Add(st, n, s.limit, now)
		return st, added
	}, EventAdded, &n)
	if ev != nil {
		s.notify(*ev)
	}
	return n, added
}

// MarkAsRead is a no-op for unknown or already read records.
func (s *Store) MarkAsRead(id string) bool {
	now := s.now()
	ev := s.apply(func(st State) (State, bool) {
		return MarkRead(st, id, now)
	}, EventUpdated, nil)
	if ev == nil {
		return false
	}
	s.notify(*ev)
	return true
}

func (s *Store) MarkAllAsRead() {
	now := s.now()
	ev := s.apply(func(st State) (State, bool) {
		return MarkAllRead(st, now), true
	}, EventUpdated, nil)
	s.notify(*ev)
}

func (s *Store) RemoveNotification(id string) bool {
	now := s.now()
	ev := s.apply(func(st State) (State, bool) {
		return Remove(st, id, now)
	}, EventRemoved, nil)
	if ev == nil {
		return false
	}
	s.notify(*ev)
	return true
}

// SyncNotifications replaces records and unread counter with the server copy.
func (s *Store) SyncNotifications(list []notification.Notification, unreadCount int) {
	now := s.now()
	ev := s.apply(func(st State) (State, bool) {
		return Sync(st, list, unreadCount, s.limit, now), true
	}, EventSynced, nil)
	s.notify(*ev)
}

func (s *Store) SyncUnreadCount(unreadCount int) {
	now := s.now()
	ev := s.apply(func(st State) (State, bool) {
		return SyncUnreadCount(st, unreadCount, now), true
	}, EventSynced, nil)
	s.notify(*ev)
}

func (s *Store) SetConnectionStatus(connected bool) {
	ev := s.apply(func(st State) (State, bool) {
		if st.IsConnected == connected {
			return st, false
		}
		return SetConnected(st, connected), true
	}, EventConnection, nil)
	if ev != nil {
		s.notify(*ev)
	}
}

// Reset drops all session state; used when the identity goes away.
func (s *Store) Reset() {
	ev := s.apply(func(State) (State, bool) {
		return State{Notifications: []notification.Notification{}}, true
	}, EventReset, nil)
	s.notify(*ev)
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Limit() int {
	return s.limit
}

type subscription struct {
	id int
	l  Listener
}

// Subscribe registers l and returns a function that removes it. Listeners
// are called in the order they subscribed and must not mutate the store
// synchronously.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, l: l})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// apply runs fn under the state lock. The delivery lock is taken first and
// stays held until notify, so events reach listeners in mutation order. A
// nil result means nothing changed and the delivery lock is released.
func (s *Store) apply(fn func(State) (State, bool), kind EventKind, n *notification.Notification) *pendingEvent {
	s.notifyMu.Lock()

	s.mu.Lock()
	next, changed := fn(s.state)
	if changed {
		s.state = next
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		listeners = append(listeners, sub.l)
	}
	s.mu.Unlock()

	if !changed {
		s.notifyMu.Unlock()
		return nil
	}

	return &pendingEvent{
		event:     Event{Kind: kind, Notification: n, State: next},
		listeners: listeners,
	}
}

type pendingEvent struct {
	event     Event
	listeners []Listener
}

func (s *Store) notify(p pendingEvent) {
	defer s.notifyMu.Unlock()
	for _, l := range p.listeners {
		l(p.event)
	}
}
