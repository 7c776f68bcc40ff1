// internal/handlers/session/session_handler.go
package session

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studio-notify/internal/domain/identity"
	"studio-notify/internal/middleware"
	"studio-notify/internal/pkg/response"
)

// Sessions is the session lifecycle as seen by the bridge.
type Sessions interface {
	Start(ctx context.Context, token string) (identity.Identity, error)
	End()
}

type StartRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

type SessionHandler struct {
	sessions Sessions
	// baseCtx outlives the request that starts a session.
	baseCtx context.Context
	logger  *zap.Logger
}

func NewSessionHandler(baseCtx context.Context, sessions Sessions, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		baseCtx:  baseCtx,
		logger:   logger,
	}
}

// Start signs an identity in with an access token obtained elsewhere.
func (h *SessionHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	id, err := h.sessions.Start(h.baseCtx, req.AccessToken)
	if err != nil {
		h.logger.Warn("session start failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		response.Error(c, http.StatusUnauthorized, "invalid access token", err)
		return
	}

	response.Success(c, http.StatusCreated, "session started", id)
}

// Get returns the signed-in identity.
// MUST be used after RequireSession() middleware
func (h *SessionHandler) Get(c *gin.Context) {
	response.Success(c, http.StatusOK, "session retrieved", middleware.MustGetIdentity(c))
}

// End signs the identity out.
func (h *SessionHandler) End(c *gin.Context) {
	h.sessions.End()
	response.Success(c, http.StatusOK, "session ended", nil)
}
