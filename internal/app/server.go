// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studio-notify/internal/alert"
	"studio-notify/internal/api"
	"studio-notify/internal/config"
	"studio-notify/internal/db"
	"studio-notify/internal/eventrouter"
	notifyHandler "studio-notify/internal/handlers/notification"
	sessionHandler "studio-notify/internal/handlers/session"
	wsHandler "studio-notify/internal/handlers/websocket"
	"studio-notify/internal/middleware"
	"studio-notify/internal/pkg/jwt"
	notifyService "studio-notify/internal/service/notification"
	"studio-notify/internal/session"
	"studio-notify/internal/store"
	"studio-notify/internal/stream"
	"studio-notify/internal/websocket"
	wsHandlers "studio-notify/internal/websocket/handler"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Start wires the subsystem, serves the bridge and blocks until ctx is done
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	logger := s.logger

	// ----- Auth -----
	pub, err := jwt.LoadRSAPublicKeyFromPEM(s.cfg.JWTPublicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load JWT public key: %w", err)
	}
	verifier := jwt.NewVerifier(pub, s.cfg.JWTIssuer, s.cfg.JWTAudience)
	tokens := jwt.NewTokenStore("")

	// ----- Store & alerts -----
	notifications := store.New(store.WithLimit(s.cfg.MaxNotifications))
	bus := alert.NewBus(logger)

	if len(s.cfg.Redis().Addresses) > 0 {
		redisClient, err := db.NewRedisClient(ctx, s.cfg.Redis())
		if err != nil {
			return err
		}
		defer closeRedis(redisClient, logger)
		bus.AddSink(alert.NewRedisSink(redisClient, s.cfg.RedisChannel))
		logger.Info("alert fan-out enabled", zap.String("channel", s.cfg.RedisChannel))
	}

	// ----- REST client -----
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	apiClient, err := api.NewClient(api.Config{
		BaseURL:    s.cfg.APIBaseURL,
		HTTPClient: &http.Client{Jar: jar, Timeout: s.cfg.RequestTimeout},
		Tokens:     tokens,
		Logger:     logger.Named("api"),
	})
	if err != nil {
		return err
	}

	// ----- Services -----
	notifService := notifyService.NewNotificationService(apiClient, notifications, bus, notifyService.Config{
		PageSize:     s.cfg.PageSize,
		PollInterval: s.cfg.StatsPollInterval,
	}, logger.Named("reconciler"))

	router := eventrouter.New(notifications, bus, logger.Named("router"))
	streamManager := stream.NewManager(stream.Config{
		URL:            s.cfg.WSURL,
		ReconnectDelay: s.cfg.ReconnectDelay,
	}, tokens, router, notifications, logger.Named("stream"))

	sessions := session.NewManager(session.Deps{
		Verifier:   verifier,
		Tokens:     tokens,
		Stream:     streamManager,
		Reconciler: notifService,
		Store:      notifications,
	}, logger.Named("session"))
	apiClient.SetSessionExpiredHook(sessions.Expired())
	defer sessions.End()

	// ----- Bridge hub -----
	hub := websocket.NewHub(s.cfg.BridgeToken, notifications, logger.Named("bridge"))
	hub.RegisterHandler(wsHandlers.NewNotificationHandler(notifService, notifications))
	detach := hub.Attach(bus)
	defer detach()

	if s.cfg.AccessToken != "" {
		if _, err := sessions.Start(ctx, s.cfg.AccessToken); err != nil {
			logger.Warn("ACCESS_TOKEN rejected, waiting for a session to be started through the bridge", zap.Error(err))
		}
	}

	// ----- Handlers -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	SetupRouter(s.engine, &Handlers{
		NotifHandler:   notifyHandler.NewNotificationHandler(notifService, notifications, logger),
		SessionHandler: sessionHandler.NewSessionHandler(ctx, sessions, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(s.cfg.BridgeToken, sessions),
		Status: func() gin.H {
			return gin.H{
				"session":   sessions.Active(),
				"connected": streamManager.Connected(),
				"clients":   hub.TotalClients(),
			}
		},
	})

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("bridge listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func closeRedis(client redis.UniversalClient, logger *zap.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("failed to close redis client", zap.Error(err))
	}
}
