// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"studio-notify/internal/domain/identity"
)

// Claims is the subset of the marketplace access token the agent cares about.
type Claims struct {
	UserID   string   `json:"userId,omitempty"`
	AltID    string   `json:"id,omitempty"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	StudioID string   `json:"studioId,omitempty"`
	jwt.RegisteredClaims
}

// Identity maps the claims onto the session identity. The user id is taken
// from userId, then id, then the subject.
func (c *Claims) Identity() identity.Identity {
	userID := c.UserID
	if userID == "" {
		userID = c.AltID
	}
	if userID == "" {
		userID = c.Subject
	}

	role := c.Role
	if role == "" && len(c.Roles) > 0 {
		role = c.Roles[0]
	}

	return identity.Identity{
		UserID:   userID,
		Role:     identity.Role(role),
		StudioID: c.StudioID,
	}
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
