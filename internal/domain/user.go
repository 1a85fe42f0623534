package domain

import "time"

// UserProfile represents the authenticated user as reported by the server.
// It is immutable for the lifetime of a session and replaced wholesale on
// the next login.
type UserProfile struct {
	ID        string    `json:"id"`       // UUID
	Username  string    `json:"username"` // Unique username
	Email     string    `json:"email"`    // Unique email address
	Roles     []string  `json:"roles"`    // Capability tags, e.g. "admin"
	CreatedAt time.Time `json:"createdAt"`
}

// HasRole reports whether the profile carries the given capability tag.
// Roles are only ever checked by membership.
func (u *UserProfile) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
