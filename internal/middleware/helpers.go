// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"studio-notify/internal/domain/identity"
)

// GetIdentity returns the identity stored by RequireSession.
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// MustGetIdentity gets the identity from context or panics
func MustGetIdentity(c *gin.Context) identity.Identity {
	id, ok := GetIdentity(c)
	if !ok {
		panic("identity not found in context")
	}
	return id
}
