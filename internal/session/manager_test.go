package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studio-notify/internal/domain/identity"
	xerrors "studio-notify/internal/pkg/errors"
	"studio-notify/internal/pkg/jwt"
)

// journal records collaborator calls in order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	j.calls = append(j.calls, call)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func (j *journal) reset() {
	j.mu.Lock()
	j.calls = nil
	j.mu.Unlock()
}

type fakeVerifier map[string]identity.Identity

func (v fakeVerifier) Identity(token string) (identity.Identity, error) {
	id, ok := v[token]
	if !ok {
		return identity.Identity{}, xerrors.ErrInvalidToken
	}
	return id, nil
}

type fakeStream struct {
	j         *journal
	mu        sync.Mutex
	connected identity.Identity
}

func (s *fakeStream) Connect(ctx context.Context, id identity.Identity) {
	s.mu.Lock()
	s.connected = id
	s.mu.Unlock()
	s.j.add("stream.connect:" + id.UserID)
}

func (s *fakeStream) Close() { s.j.add("stream.close") }

type fakeReconciler struct {
	j          *journal
	reconciled chan struct{}
}

func (r *fakeReconciler) Begin(context.Context) { r.j.add("reconciler.begin") }
func (r *fakeReconciler) Reset()                { r.j.add("reconciler.reset") }

func (r *fakeReconciler) Reconcile(ctx context.Context) error {
	select {
	case r.reconciled <- struct{}{}:
	default:
	}
	return nil
}

func (r *fakeReconciler) PollStats(ctx context.Context) {
	<-ctx.Done()
	r.j.add("poll.stopped")
}

type fakeStore struct{ j *journal }

func (s *fakeStore) SetConnectionStatus(connected bool) {
	if !connected {
		s.j.add("store.disconnected")
	}
}

func (s *fakeStore) Reset() { s.j.add("store.reset") }

var (
	alice = identity.Identity{UserID: "alice", Role: identity.RoleClient}
	bob   = identity.Identity{UserID: "bob", Role: identity.RoleStudio, StudioID: "S1"}
)

type fixture struct {
	m          *Manager
	j          *journal
	tokens     *jwt.TokenStore
	stream     *fakeStream
	reconciled chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	j := &journal{}
	f := &fixture{
		j:          j,
		tokens:     jwt.NewTokenStore(""),
		stream:     &fakeStream{j: j},
		reconciled: make(chan struct{}, 4),
	}
	f.m = NewManager(Deps{
		Verifier:   fakeVerifier{"tok-alice": alice, "tok-alice-2": alice, "tok-bob": bob},
		Tokens:     f.tokens,
		Stream:     f.stream,
		Reconciler: &fakeReconciler{j: j, reconciled: f.reconciled},
		Store:      &fakeStore{j: j},
	}, zaptest.NewLogger(t))
	t.Cleanup(f.m.End)
	return f
}

func (f *fixture) waitReconciled(t *testing.T) {
	t.Helper()
	select {
	case <-f.reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("initial reconciliation did not run")
	}
}

func TestStartBringsSessionUp(t *testing.T) {
	f := newFixture(t)

	id, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)

	assert.Equal(t, alice, id)
	assert.Equal(t, "tok-alice", f.tokens.Token())
	assert.Equal(t, []string{"reconciler.begin", "stream.connect:alice"}, f.j.list())

	current, err := f.m.Identity()
	require.NoError(t, err)
	assert.Equal(t, alice, current)
	assert.True(t, f.m.Active())
}

func TestStartRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Start(context.Background(), "garbage")

	assert.True(t, errors.Is(err, xerrors.ErrInvalidToken))
	assert.False(t, f.m.Active())
	assert.Empty(t, f.j.list())
}

func TestEndTearsDownBeforeClearingStore(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)
	f.j.reset()

	f.m.End()

	// The poll stops concurrently with the teardown calls, but always
	// before the store is touched.
	calls := f.j.list()
	require.Len(t, calls, 5)
	assert.ElementsMatch(t, []string{"reconciler.reset", "stream.close", "poll.stopped"}, calls[:3])
	assert.Equal(t, []string{"store.disconnected", "store.reset"}, calls[3:])

	assert.Empty(t, f.tokens.Token())
	_, err = f.m.Identity()
	assert.ErrorIs(t, err, xerrors.ErrNoSession)
}

func TestEndWithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t)
	f.m.End()
	assert.Empty(t, f.j.list())
}

func TestSameIdentityOnlyReplacesToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)
	f.j.reset()

	_, err = f.m.Start(context.Background(), "tok-alice-2")
	require.NoError(t, err)

	assert.Empty(t, f.j.list())
	assert.Equal(t, "tok-alice-2", f.tokens.Token())
}

func TestIdentityChangeEndsPreviousSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)
	f.j.reset()

	_, err = f.m.Start(context.Background(), "tok-bob")
	require.NoError(t, err)
	f.waitReconciled(t)

	calls := f.j.list()
	require.Len(t, calls, 7)
	assert.ElementsMatch(t, []string{"reconciler.reset", "stream.close", "poll.stopped"}, calls[:3])
	assert.Equal(t, []string{
		"store.disconnected",
		"store.reset",
		"reconciler.begin",
		"stream.connect:bob",
	}, calls[3:])

	current, err := f.m.Identity()
	require.NoError(t, err)
	assert.Equal(t, bob, current)
	assert.Equal(t, "tok-bob", f.tokens.Token())
}

func TestExpiredEndsActiveSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)

	f.m.Expired()()

	require.Eventually(t, func() bool { return !f.m.Active() }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, f.tokens.Token())
}

func TestExpiredDoesNotEndLaterSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(context.Background(), "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)

	// The hook captures alice's generation; its goroutine can only take the
	// lock once alice's session is gone.
	f.m.mu.Lock()
	f.m.Expired()()
	f.m.endLocked()
	f.m.mu.Unlock()

	_, err = f.m.Start(context.Background(), "tok-bob")
	require.NoError(t, err)
	f.waitReconciled(t)

	time.Sleep(50 * time.Millisecond)
	assert.True(t, f.m.Active())
	current, _ := f.m.Identity()
	assert.Equal(t, bob, current)
}

func TestParentContextBoundsSession(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.m.Start(ctx, "tok-alice")
	require.NoError(t, err)
	f.waitReconciled(t)

	cancel()

	require.Eventually(t, func() bool {
		for _, c := range f.j.list() {
			if c == "poll.stopped" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}
