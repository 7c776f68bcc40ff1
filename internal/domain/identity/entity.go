// internal/domain/identity/entity.go
package identity

type Role string

const (
	RoleClient Role = "client"
	RoleStudio Role = "studio"
	RoleAdmin  Role = "admin"
)

// Identity is the authenticated user the session belongs to. StudioID is
// only set for studio owners.
type Identity struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	StudioID string `json:"studioId,omitempty"`
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}

func (i Identity) HasRole(role Role) bool {
	return i.Role == role
}

// OwnsStudio reports whether the identity is a studio owner for studioID.
func (i Identity) OwnsStudio(studioID string) bool {
	return i.Role == RoleStudio && i.StudioID != "" && i.StudioID == studioID
}
