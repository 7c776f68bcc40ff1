// internal/stream/manager.go
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"studio-notify/internal/domain/identity"
	wstypes "studio-notify/internal/domain/websocket"
	"studio-notify/internal/pkg/jwt"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB

	defaultReconnectDelay   = 2 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
)

// ErrUnauthorized is returned by a dial the server rejected with 401 or 403.
var ErrUnauthorized = errors.New("event stream handshake unauthorized")

// Dispatcher consumes inbound events.
type Dispatcher interface {
	Dispatch(id identity.Identity, event wstypes.EventType, raw json.RawMessage) bool
}

// StatusSink receives the connectivity signal.
type StatusSink interface {
	SetConnectionStatus(connected bool)
}

type Config struct {
	URL              string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Manager owns the one live event-stream connection of a session. The
// connection is re-dialed after transport drops at a paced rate, and the
// join message is sent again after every handshake.
type Manager struct {
	cfg        Config
	tokens     *jwt.TokenStore
	dispatcher Dispatcher
	status     StatusSink
	logger     *zap.Logger
	dialer     *websocket.Dialer

	mu       sync.Mutex
	identity identity.Identity
	cancel   context.CancelFunc
	done     chan struct{}
	conn     *websocket.Conn
}

func NewManager(cfg Config, tokens *jwt.TokenStore, dispatcher Dispatcher, status StatusSink, logger *zap.Logger) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		cfg:        cfg,
		tokens:     tokens,
		dispatcher: dispatcher,
		status:     status,
		logger:     logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Connect starts the connection loop for id. Connecting again with the same
// identity is a no-op; a different identity replaces the running loop.
func (m *Manager) Connect(ctx context.Context, id identity.Identity) {
	m.mu.Lock()
	if m.cancel != nil && m.identity == id {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.identity = id
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.run(loopCtx, id, done)
}

// Close tears the connection down and waits for the loop to exit. It is
// safe to call on a manager that is not connected.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.identity = identity.Identity{}
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether a handshake-complete connection is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) run(ctx context.Context, id identity.Identity, done chan struct{}) {
	defer close(done)
	defer m.status.SetConnectionStatus(false)

	limiter := rate.NewLimiter(rate.Every(m.cfg.ReconnectDelay), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		m.serve(ctx, conn, id)
		m.status.SetConnectionStatus(false)

		if ctx.Err() != nil {
			return
		}
		m.logger.Info("event stream disconnected, reconnecting", zap.String("user_id", id.UserID))
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if token := m.tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.logger.Warn("event stream authentication rejected",
				zap.Int("status", resp.StatusCode),
			)
			return nil, ErrUnauthorized
		}
		if ctx.Err() == nil {
			m.logger.Warn("event stream dial failed", zap.String("url", m.cfg.URL), zap.Error(err))
		}
		return nil, err
	}
	return conn, nil
}

// serve announces the identity and pumps inbound frames until the
// connection drops or ctx is cancelled.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn, id identity.Identity) {
	defer conn.Close()

	join := wstypes.NewMessage(wstypes.EventTypeJoin, wstypes.JoinData{
		UserID: id.UserID,
		Role:   string(id.Role),
	})
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(join); err != nil {
		m.logger.Warn("failed to send join", zap.Error(err))
		return
	}

	m.setConn(conn)
	defer m.setConn(nil)
	m.status.SetConnectionStatus(true)
	m.logger.Info("event stream connected",
		zap.String("user_id", id.UserID),
		zap.String("role", string(id.Role)),
	)

	stopped := make(chan struct{})
	defer close(stopped)
	go m.keepAlive(ctx, conn, stopped)

	m.readPump(ctx, conn, id)
}

// keepAlive pings the server and closes the connection when ctx ends,
// which unblocks the read pump.
func (m *Manager) keepAlive(ctx context.Context, conn *websocket.Conn, stopped <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopped:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn, id identity.Identity) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("event stream read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := wstypes.ParseMessage(data)
		if err != nil {
			m.logger.Debug("ignoring malformed frame", zap.Error(err))
			continue
		}

		// Nothing read after teardown may reach the store.
		if ctx.Err() != nil {
			return
		}
		m.dispatcher.Dispatch(id, msg.Type, msg.Data)
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}
