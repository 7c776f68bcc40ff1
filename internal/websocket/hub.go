// internal/websocket/hub.go
package websocket

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studio-notify/internal/alert"
	wstypes "studio-notify/internal/domain/websocket"
	"studio-notify/internal/store"
)

// Hub fans store changes and alerts out to local presentation clients
// connected to the bridge.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	// done is closed once Run has returned
	done chan struct{}

	bridgeToken string
	store       *store.Store
	logger      *zap.Logger
}

type BroadcastMessage struct {
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(bridgeToken string, st *store.Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:         make(map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		done:            make(chan struct{}),
		bridgeToken:     bridgeToken,
		store:           st,
		logger:          logger,
	}
}

// AuthenticateClient checks the bridge token. An empty configured token
// leaves the bridge open, which is only sensible on a loopback address.
func (h *Hub) AuthenticateClient(token string, remoteAddr string) (*ClientAuth, error) {
	if h.bridgeToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.bridgeToken)) != 1 {
		return nil, ErrUnauthorized
	}
	return &ClientAuth{
		ClientID:   uuid.NewString(),
		RemoteAddr: remoteAddr,
	}, nil
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage processes a message from a client using registered handlers
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.InboundMessage) (bool, error) {
	handler, exists := h.handlerRegistry.Lookup(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Attach subscribes the hub to store changes and alerts. The returned
// function detaches it.
func (h *Hub) Attach(bus *alert.Bus) func() {
	unsubStore := h.store.Subscribe(func(ev store.Event) {
		h.Publish(wstypes.ChannelNotifications, wstypes.NewMessage(wstypes.EventTypeStoreChanged, storeChange(ev)))
	})
	unsubAlerts := bus.Subscribe(func(a alert.Alert) {
		h.Publish(wstypes.ChannelAlerts, wstypes.NewMessage(wstypes.EventTypeAlert, a))
	})
	return func() {
		unsubStore()
		unsubAlerts()
	}
}

// Publish queues msg for every client subscribed to channel. It never
// blocks: when the queue is full the message is dropped.
func (h *Hub) Publish(channel wstypes.ChannelType, msg *wstypes.WSMessage) {
	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Message: msg}:
	default:
		h.logger.Warn("bridge broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Join hands client to the run loop. It reports false when the hub has
// already shut down.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands client to the run loop for removal, or closes it directly
// once the loop is gone.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("bridge client connected",
		zap.String("client_id", client.id),
		zap.String("remote_addr", client.remoteAddr),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"clientId": client.id,
		"state":    h.store.Snapshot(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		client.Close()

		h.logger.Info("bridge client disconnected",
			zap.String("client_id", client.id),
			zap.Int("total", len(h.clients)),
		)
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.IsSubscribed(msg.Channel) {
			client.SendMessage(msg.Message)
		}
	}
}

// HandledEvents lists the request types the registered handlers serve.
func (h *Hub) HandledEvents() []wstypes.EventType {
	return h.handlerRegistry.Events()
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)
}

func storeChange(ev store.Event) map[string]interface{} {
	payload := map[string]interface{}{
		"kind":  ev.Kind,
		"state": ev.State,
	}
	if ev.Notification != nil {
		payload["notification"] = ev.Notification
	}
	return payload
}
