// internal/websocket/handler.go
package websocket

import (
	"context"
	"sort"
	"sync"

	wstypes "studio-notify/internal/domain/websocket"
)

// MessageHandler serves bridge requests for a group of event types.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.InboundMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry maps request event types to their handler. A later
// registration for the same event replaces the earlier one.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[wstypes.EventType]MessageHandler)}
}

func (r *HandlerRegistry) Register(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range handler.SupportedEvents() {
		r.handlers[event] = handler
	}
}

func (r *HandlerRegistry) Lookup(event wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[event]
	return h, ok
}

// Events lists the handled request types in sorted order.
func (r *HandlerRegistry) Events() []wstypes.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]wstypes.EventType, 0, len(r.handlers))
	for event := range r.handlers {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}
