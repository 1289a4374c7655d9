package domain

import "strings"

// Role is the authorization role carried by an authenticated actor.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role claim. Unknown or empty roles degrade to RoleUser.
func ParseRole(s string) Role {
	if Role(strings.ToUpper(strings.TrimSpace(s))) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID UserID
	Role   Role
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor is the given owner.
func (a Actor) Owns(owner UserID) bool {
	return !a.UserID.IsNil() && a.UserID == owner
}
