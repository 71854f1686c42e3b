package domain

import "strings"

// Role enumerates account privileges.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a role tag supplied by a caller.
func ParseRole(raw string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleUser, RoleSeller, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// NormalizeRole maps stored values onto the closed role set, defaulting to RoleUser.
func NormalizeRole(raw string) Role {
	if role, ok := ParseRole(raw); ok {
		return role
	}
	return RoleUser
}
