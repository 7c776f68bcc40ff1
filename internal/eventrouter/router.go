// internal/eventrouter/router.go
package eventrouter

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"studio-notify/internal/alert"
	"studio-notify/internal/domain/identity"
	"studio-notify/internal/domain/notification"
	wstypes "studio-notify/internal/domain/websocket"
)

// Inserter is the part of the store the router writes to.
type Inserter interface {
	AddNotification(d notification.Draft) (notification.Notification, bool)
}

// Publisher receives the "new notification admitted" signal.
type Publisher interface {
	Publish(a alert.Alert)
}

// Router maps inbound stream events onto notifications. It performs no I/O:
// it only looks at the payload it is given and the identity of the session.
type Router struct {
	mu     sync.RWMutex
	routes map[wstypes.EventType]Route
	store  Inserter
	alerts Publisher
	logger *zap.Logger
}

func New(store Inserter, alerts Publisher, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		routes: DefaultRoutes(),
		store:  store,
		alerts: alerts,
		logger: logger,
	}
}

// Register adds or replaces the route for an event name.
func (r *Router) Register(event wstypes.EventType, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[event] = route
}

// Events lists the event names with a route.
func (r *Router) Events() []wstypes.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]wstypes.EventType, 0, len(r.routes))
	for e := range r.routes {
		events = append(events, e)
	}
	return events
}

// Dispatch admits the event for id or silently drops it. It reports whether
// a new record reached the store.
func (r *Router) Dispatch(id identity.Identity, event wstypes.EventType, raw json.RawMessage) bool {
	if id.IsZero() {
		return false
	}

	r.mu.RLock()
	route, ok := r.routes[event]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	payload, err := decodePayload(raw)
	if err != nil {
		r.logger.Debug("dropping event with malformed payload",
			zap.String("event", string(event)),
			zap.Error(err),
		)
		return false
	}

	if !route.Admit(id, payload) {
		return false
	}

	draft := route.Project(id, payload)
	if pr, ok := notification.ParsePriority(payload.String("priority")); ok {
		draft.Priority = pr
	}
	if draft.CorrelationKey == "" {
		draft.CorrelationKey = payload.First("correlationKey", "notificationId")
	}
	if draft.Timestamp.IsZero() {
		draft.Timestamp = payload.Time("timestamp", "createdAt")
	}
	if draft.Data == nil {
		if nested, ok := payload["data"].(map[string]interface{}); ok {
			draft.Data = nested
		} else {
			draft.Data = map[string]interface{}(payload)
		}
	}

	n, added := r.store.AddNotification(draft)
	if !added {
		r.logger.Debug("duplicate live notification ignored",
			zap.String("event", string(event)),
			zap.String("id", n.ID),
			zap.String("correlation_key", n.CorrelationKey),
		)
		return false
	}

	r.logger.Info("notification admitted",
		zap.String("event", string(event)),
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
	)
	if r.alerts != nil {
		r.alerts.Publish(alert.Admitted(n))
	}
	return true
}
