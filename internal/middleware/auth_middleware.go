// internal/middleware/auth_middleware.go
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-notify/internal/domain/identity"
	"studio-notify/internal/pkg/response"
)

const identityKey = "identity"

// IdentitySource reports the identity of the active session.
type IdentitySource interface {
	Identity() (identity.Identity, error)
}

type AuthMiddleware struct {
	bridgeToken string
	sessions    IdentitySource
}

func NewAuthMiddleware(bridgeToken string, sessions IdentitySource) *AuthMiddleware {
	return &AuthMiddleware{
		bridgeToken: bridgeToken,
		sessions:    sessions,
	}
}

// Auth checks the bridge token. With no token configured every local
// caller is accepted.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.bridgeToken == "" {
			c.Next()
			return
		}

		token := ExtractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing bridge token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.bridgeToken)) != 1 {
			response.Error(c, http.StatusUnauthorized, "invalid bridge token", nil)
			return
		}

		c.Next()
	}
}

// RequireSession rejects the request when no identity is signed in and
// stores the identity on the context otherwise.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := m.sessions.Identity()
		if err != nil {
			response.Error(c, http.StatusConflict, "no active session", err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// ExtractToken reads the token from the Authorization header or, for
// browser WebSocket clients, the token query parameter.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}
