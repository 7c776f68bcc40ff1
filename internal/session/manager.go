// internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"studio-notify/internal/domain/identity"
	xerrors "studio-notify/internal/pkg/errors"
	"studio-notify/internal/pkg/jwt"
)

type Verifier interface {
	Identity(token string) (identity.Identity, error)
}

type Stream interface {
	Connect(ctx context.Context, id identity.Identity)
	Close()
}

type Reconciler interface {
	Begin(ctx context.Context)
	Reset()
	Reconcile(ctx context.Context) error
	PollStats(ctx context.Context)
}

type Store interface {
	SetConnectionStatus(connected bool)
	Reset()
}

// Deps are the collaborators a session drives.
type Deps struct {
	Verifier   Verifier
	Tokens     *jwt.TokenStore
	Stream     Stream
	Reconciler Reconciler
	Store      Store
}

// Manager ties the notification subsystem to one authenticated identity at a
// time. Starting a session for a different identity ends the previous one
// first; ending a session tears down the stream and the poll before the
// store is cleared.
type Manager struct {
	deps   Deps
	logger *zap.Logger

	mu         sync.Mutex
	identity   identity.Identity
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	generation atomic.Uint64
}

func NewManager(deps Deps, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{deps: deps, logger: logger}
}

// Start derives the identity from token and brings the subsystem up for it.
// ctx bounds the lifetime of the session. Starting again for the identity
// already active only replaces the stored token.
func (m *Manager) Start(ctx context.Context, token string) (identity.Identity, error) {
	id, err := m.deps.Verifier.Identity(token)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to start session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil && m.identity == id {
		m.deps.Tokens.SetToken(token)
		return id, nil
	}
	if m.cancel != nil {
		m.logger.Info("identity changed, ending previous session",
			zap.String("previous_user_id", m.identity.UserID),
			zap.String("user_id", id.UserID),
		)
		m.endLocked()
	}

	sessCtx, cancel := context.WithCancel(ctx)
	m.identity = id
	m.cancel = cancel
	m.generation.Add(1)

	m.deps.Tokens.SetToken(token)
	m.deps.Reconciler.Begin(sessCtx)
	m.deps.Stream.Connect(sessCtx, id)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := m.deps.Reconciler.Reconcile(sessCtx); err != nil && sessCtx.Err() == nil {
			m.logger.Warn("initial reconciliation failed", zap.Error(err))
		}
	}()
	go func() {
		defer m.wg.Done()
		m.deps.Reconciler.PollStats(sessCtx)
	}()

	m.logger.Info("session started",
		zap.String("user_id", id.UserID),
		zap.String("role", string(id.Role)),
	)
	return id, nil
}

// End tears the session down. It is a no-op without an active session.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
}

// Expired returns a hook for the REST client's refresh failure. The hook ends
// the session that was active when it fired, never a later one, and does
// so asynchronously because it runs inside a request of that session.
func (m *Manager) Expired() func() {
	return func() {
		gen := m.generation.Load()

		go func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.generation.Load() != gen || m.cancel == nil {
				return
			}
			m.logger.Warn("session expired", zap.String("user_id", m.identity.UserID))
			m.endLocked()
		}()
	}
}

// Identity returns the active identity.
func (m *Manager) Identity() (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return identity.Identity{}, xerrors.ErrNoSession
	}
	return m.identity, nil
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Manager) endLocked() {
	if m.cancel == nil {
		return
	}

	userID := m.identity.UserID
	m.cancel()
	m.deps.Reconciler.Reset()
	m.deps.Stream.Close()
	m.wg.Wait()

	m.cancel = nil
	m.identity = identity.Identity{}
	m.generation.Add(1)

	m.deps.Tokens.Clear()
	m.deps.Store.SetConnectionStatus(false)
	m.deps.Store.Reset()

	m.logger.Info("session ended", zap.String("user_id", userID))
}
