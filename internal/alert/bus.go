// internal/alert/bus.go
package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studio-notify/internal/domain/notification"
)

type Kind string

const (
	// KindAdmitted signals a live notification that passed admission.
	KindAdmitted Kind = "notification_admitted"
	// KindError is a transient user-facing failure message.
	KindError Kind = "error"
)

// Alert is a transient, toast-style signal for presentation consumers.
type Alert struct {
	Kind         Kind                       `json:"kind"`
	Notification *notification.Notification `json:"notification,omitempty"`
	Message      string                     `json:"message,omitempty"`
	Timestamp    time.Time                  `json:"timestamp"`
}

func Admitted(n notification.Notification) Alert {
	return Alert{Kind: KindAdmitted, Notification: &n, Message: n.Title, Timestamp: time.Now()}
}

func Error(message string) Alert {
	return Alert{Kind: KindError, Message: message, Timestamp: time.Now()}
}

// Sink forwards alerts out of process.
type Sink interface {
	Publish(ctx context.Context, a Alert) error
}

const sinkTimeout = 5 * time.Second

// Bus fans alerts out to in-process subscribers and sinks.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	nextID      int
	sinks       []Sink
	logger      *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

type subscriber struct {
	id int
	fn func(Alert)
}

// Subscribe registers fn and returns a function that removes it. Subscribers
// are called in the order they subscribed.
func (b *Bus) Subscribe(fn func(Alert)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers = append(b.subscribers, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub.id == id {
				b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish delivers a to subscribers synchronously; sinks are written in the
// background so a slow broker never stalls the event stream.
func (b *Bus) Publish(a Alert) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	b.mu.RLock()
	subscribers := make([]func(Alert), 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub.fn)
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, fn := range subscribers {
		fn(a)
	}

	for _, s := range sinks {
		go func(s Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Publish(ctx, a); err != nil {
				b.logger.Warn("alert sink publish failed", zap.String("kind", string(a.Kind)), zap.Error(err))
			}
		}(s)
	}
}
