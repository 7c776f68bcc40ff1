// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studio-notify/internal/alert"
	"studio-notify/internal/domain/notification"
	xerrors "studio-notify/internal/pkg/errors"
	"studio-notify/internal/store"
)

const (
	DefaultPageSize     = 20
	DefaultPollInterval = 30 * time.Second

	localIDPrefix = "local-"
)

// API is the slice of the REST client the service depends on.
type API interface {
	ListNotifications(ctx context.Context, page, limit int) ([]notification.Notification, error)
	Stats(ctx context.Context) (notification.Stats, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(a alert.Alert)
}

type Config struct {
	PageSize     int
	PollInterval time.Duration
}

// NotificationService keeps the store in line with the server. Mutations are
// applied to the store first and sent to the server afterwards; a failed
// request is reported as an alert and left for the next reconciliation.
//
// Every request is bound to the session that issued it. Begin and Reset move
// the generation forward, and a response that comes back under an older
// generation is discarded.
type NotificationService struct {
	api    API
	store  *store.Store
	alerts Publisher
	logger *zap.Logger
	cfg    Config

	mu         sync.Mutex
	generation uint64
	sessionCtx context.Context
}

func NewNotificationService(api API, st *store.Store, alerts Publisher, cfg Config, logger *zap.Logger) *NotificationService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		api:    api,
		store:  st,
		alerts: alerts,
		logger: logger,
		cfg:    cfg,
	}
}

// Begin binds the service to a new session whose lifetime is ctx.
func (s *NotificationService) Begin(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.sessionCtx = ctx
}

// Reset detaches the service from the current session. Responses still in
// flight for it are dropped when they arrive.
func (s *NotificationService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.sessionCtx = nil
}

// Reconcile fetches the first page and the stats and replaces the store
// contents with them.
func (s *NotificationService) Reconcile(ctx context.Context) error {
	ctx, gen, done, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	var (
		list  []notification.Notification
		stats notification.Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.api.ListNotifications(gctx, 1, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stats, err = s.api.Stats(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch notification stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.discardIfStale(gen, err)
	}

	return s.commit(gen, func() {
		s.store.SyncNotifications(list, stats.UnreadCount)
	})
}

// RefreshStats replaces only the unread counter.
func (s *NotificationService) RefreshStats(ctx context.Context) error {
	ctx, gen, done, err := s.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	stats, err := s.api.Stats(ctx)
	if err != nil {
		return s.discardIfStale(gen, fmt.Errorf("failed to fetch notification stats: %w", err))
	}

	return s.commit(gen, func() {
		s.store.SyncUnreadCount(stats.UnreadCount)
	})
}

// PollStats refreshes the unread counter on every tick until ctx is done.
func (s *NotificationService) PollStats(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshStats(ctx); err != nil && !xerrors.IsSession(err) {
				s.logger.Warn("stats poll failed", zap.Error(err))
			}
		}
	}
}

// MarkAsRead marks id read locally, then on the server.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string) error {
	if _, _, err := s.current(); err != nil {
		return err
	}

	s.store.MarkAsRead(id)
	if isLocal(id) {
		return nil
	}

	return s.push(ctx, "Failed to mark notification as read", func(ctx context.Context) error {
		return s.api.MarkRead(ctx, id)
	})
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context) error {
	if _, _, err := s.current(); err != nil {
		return err
	}

	s.store.MarkAllAsRead()

	return s.push(ctx, "Failed to mark all notifications as read", s.api.MarkAllRead)
}

// Remove deletes id locally, then on the server.
func (s *NotificationService) Remove(ctx context.Context, id string) error {
	if _, _, err := s.current(); err != nil {
		return err
	}

	s.store.RemoveNotification(id)
	if isLocal(id) {
		return nil
	}

	return s.push(ctx, "Failed to delete notification", func(ctx context.Context) error {
		return s.api.Delete(ctx, id)
	})
}

// push sends an already-applied mutation to the server. On success the store
// is reconciled; on failure an error alert is raised and the local change
// stays in place.
func (s *NotificationService) push(ctx context.Context, failure string, call func(context.Context) error) error {
	bctx, gen, done, err := s.bind(ctx)
	if err != nil {
		return err
	}
	err = call(bctx)
	done()

	if err != nil {
		if err := s.discardIfStale(gen, err); xerrors.IsSession(err) {
			return err
		}
		s.logger.Warn(strings.ToLower(failure), zap.Error(err))
		s.publish(alert.Error(failure))
		return err
	}

	if err := s.Reconcile(ctx); err != nil && !xerrors.IsSession(err) {
		s.logger.Warn("reconciliation after mutation failed", zap.Error(err))
	}
	return nil
}

func (s *NotificationService) publish(a alert.Alert) {
	if s.alerts != nil {
		s.alerts.Publish(a)
	}
}

func (s *NotificationService) current() (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionCtx == nil {
		return nil, 0, xerrors.ErrNoSession
	}
	if s.sessionCtx.Err() != nil {
		return nil, 0, xerrors.ErrStaleSession
	}
	return s.sessionCtx, s.generation, nil
}

// bind derives a request context from ctx that is also cancelled when the
// current session ends.
func (s *NotificationService) bind(ctx context.Context) (context.Context, uint64, func(), error) {
	sessionCtx, gen, err := s.current()
	if err != nil {
		return nil, 0, nil, err
	}

	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sessionCtx, cancel)
	return rctx, gen, func() {
		stop()
		cancel()
	}, nil
}

// commit runs fn only while gen is still the current session.
func (s *NotificationService) commit(gen uint64, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.sessionCtx == nil || s.sessionCtx.Err() != nil {
		s.logger.Debug("discarding response for a stale session", zap.Uint64("generation", gen))
		return xerrors.ErrStaleSession
	}
	fn()
	return nil
}

func (s *NotificationService) discardIfStale(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.sessionCtx == nil || s.sessionCtx.Err() != nil {
		return xerrors.ErrStaleSession
	}
	return err
}

func isLocal(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}
