package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	xerrors "studio-notify/internal/pkg/errors"
	"studio-notify/internal/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend accepts one current access token and rotates it on refresh.
type fakeBackend struct {
	mu           sync.Mutex
	validToken   string
	nextToken    string
	refreshFails bool
	// refreshStale hands out nextToken without accepting it afterwards.
	refreshStale bool

	// refreshGate, when set, holds /auth/refresh until it is closed.
	refreshGate    chan struct{}
	refreshEntered chan struct{}

	refreshCalls atomic.Int32
	statsCalls   atomic.Int32
	lastReadID   string
}

func (b *fakeBackend) authorized(c *gin.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.GetHeader("Authorization") != "Bearer "+b.validToken {
		// Simulates the refresh cookie issued alongside the login.
		c.SetCookie("refreshToken", "r1", 3600, "/", "", false, true)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "jwt expired"})
		return false
	}
	return true
}

func (b *fakeBackend) router() *gin.Engine {
	r := gin.New()

	r.GET("/auth/refresh", func(c *gin.Context) {
		b.refreshCalls.Add(1)
		if b.refreshGate != nil {
			select {
			case b.refreshEntered <- struct{}{}:
			default:
			}
			<-b.refreshGate
		}
		if c.GetHeader("Authorization") != "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "refresh must not carry a bearer"})
			return
		}
		if cookie, err := c.Cookie("refreshToken"); err != nil || cookie != "r1" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "no refresh cookie"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.refreshFails {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token revoked"})
			return
		}
		if !b.refreshStale {
			b.validToken = b.nextToken
		}
		c.JSON(http.StatusOK, gin.H{"accessToken": b.nextToken})
	})

	r.GET("/notifications/stats", func(c *gin.Context) {
		b.statsCalls.Add(1)
		if !b.authorized(c) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": 9, "unreadCount": 4})
	})

	r.GET("/notifications", func(c *gin.Context) {
		if !b.authorized(c) {
			return
		}
		if c.Query("page") != "1" || c.Query("limit") != "20" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unexpected paging"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": []gin.H{
			{"_id": "n1", "type": "booking_new", "title": "New Booking", "isRead": false, "createdAt": "2026-03-01T10:00:00Z"},
			{"id": "n2", "type": "general", "title": "Hello", "isRead": true, "priority": "low"},
		}})
	})

	r.PATCH("/notifications/:id/read", func(c *gin.Context) {
		if !b.authorized(c) {
			return
		}
		b.mu.Lock()
		b.lastReadID = c.Param("id")
		b.mu.Unlock()
		c.Status(http.StatusNoContent)
	})

	r.DELETE("/notifications/:id", func(c *gin.Context) {
		if !b.authorized(c) {
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "notification not found"})
	})

	return r
}

func newTestClient(t *testing.T, b *fakeBackend, token string, onExpired func()) (*Client, *jwt.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)

	tokens := jwt.NewTokenStore(token)
	c, err := NewClient(Config{
		BaseURL:          srv.URL,
		Tokens:           tokens,
		Logger:           zaptest.NewLogger(t),
		OnSessionExpired: onExpired,
	})
	require.NoError(t, err)
	return c, tokens
}

func TestStatsWithValidToken(t *testing.T) {
	b := &fakeBackend{validToken: "t1"}
	c, _ := newTestClient(t, b, "t1", nil)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.UnreadCount)
	assert.Equal(t, 9, stats.Total)
	assert.Zero(t, b.refreshCalls.Load())
}

func TestRefreshesOnceAndRetries(t *testing.T) {
	b := &fakeBackend{validToken: "t2", nextToken: "t2"}
	c, tokens := newTestClient(t, b, "stale", nil)

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.UnreadCount)
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, int32(2), b.statsCalls.Load())
	assert.Equal(t, "t2", tokens.Token())
}

func TestRetryIsNotRepeatedOnSecond401(t *testing.T) {
	b := &fakeBackend{validToken: "t1", nextToken: "t2", refreshStale: true}
	var expired atomic.Int32
	c, tokens := newTestClient(t, b, "stale", func() { expired.Add(1) })

	_, err := c.Stats(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.NotErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, int32(2), b.statsCalls.Load())
	assert.Equal(t, "t2", tokens.Token())
	assert.Zero(t, expired.Load())
}

func TestRefreshFailureEndsSession(t *testing.T) {
	b := &fakeBackend{validToken: "t1", refreshFails: true}
	var expired atomic.Int32
	c, tokens := newTestClient(t, b, "stale", func() { expired.Add(1) })

	_, err := c.Stats(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrSessionExpired))
	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, int32(1), b.statsCalls.Load(), "the original request is not retried")
	assert.Equal(t, "stale", tokens.Token())
}

func TestConcurrent401sAllRecover(t *testing.T) {
	b := &fakeBackend{validToken: "t2", nextToken: "t2"}
	c, _ := newTestClient(t, b, "stale", nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Stats(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, b.refreshCalls.Load(), int32(5))
	assert.GreaterOrEqual(t, b.refreshCalls.Load(), int32(1))
}

func TestCancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	b := &fakeBackend{
		validToken:     "t2",
		nextToken:      "t2",
		refreshGate:    make(chan struct{}),
		refreshEntered: make(chan struct{}, 1),
	}
	var expired atomic.Int32
	c, tokens := newTestClient(t, b, "stale", func() { expired.Add(1) })
	var release sync.Once
	t.Cleanup(func() { release.Do(func() { close(b.refreshGate) }) })

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Stats(ctxA)
		errA <- err
	}()

	select {
	case <-b.refreshEntered:
	case <-time.After(3 * time.Second):
		t.Fatal("refresh was not requested")
	}

	errB := make(chan error, 1)
	go func() {
		_, err := c.Stats(context.Background())
		errB <- err
	}()
	require.Eventually(t, func() bool { return b.statsCalls.Load() == 2 }, 3*time.Second, 5*time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled caller kept waiting on the refresh")
	}

	release.Do(func() { close(b.refreshGate) })
	select {
	case err := <-errB:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("second caller did not finish")
	}

	assert.Zero(t, expired.Load())
	assert.Equal(t, "t2", tokens.Token())
}

func TestSessionExpiredHookCanBeReplacedWhileInFlight(t *testing.T) {
	b := &fakeBackend{validToken: "t1", refreshFails: true}
	var first, second atomic.Int32
	c, _ := newTestClient(t, b, "stale", func() { first.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Stats(context.Background())
			assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
		}()
	}
	c.SetSessionExpiredHook(func() { second.Add(1) })
	wg.Wait()

	assert.Equal(t, int32(4), first.Load()+second.Load())

	_, err := c.Stats(context.Background())
	require.ErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.Equal(t, int32(5), first.Load()+second.Load())
	assert.Positive(t, second.Load())
}

func TestListNotificationsDecodesDocuments(t *testing.T) {
	b := &fakeBackend{validToken: "t1"}
	c, _ := newTestClient(t, b, "t1", nil)

	list, err := c.ListNotifications(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "high", string(list[0].Priority))
	assert.False(t, list[0].Timestamp.IsZero())
	assert.Equal(t, "n2", list[1].ID)
	assert.True(t, list[1].IsRead)
	assert.Equal(t, "low", string(list[1].Priority))
}

func TestMarkReadEscapesID(t *testing.T) {
	b := &fakeBackend{validToken: "t1"}
	c, _ := newTestClient(t, b, "t1", nil)

	require.NoError(t, c.MarkRead(context.Background(), "abc 1"))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, "abc 1", b.lastReadID)
}

func TestNon2xxBecomesError(t *testing.T) {
	b := &fakeBackend{validToken: "t1"}
	c, _ := newTestClient(t, b, "t1", nil)

	err := c.Delete(context.Background(), "n1")
	require.Error(t, err)

	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.MethodDelete, apiErr.Method)
	assert.Equal(t, "notification not found", apiErr.Message)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
