package domain

import (
	"strings"
	"time"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive  UserStatus = "Active"
	UserStatusPending UserStatus = "Pending"
	UserStatusBlocked UserStatus = "Blocked"
)

// unnamedDisplayName is shown when an account never supplied a name.
const unnamedDisplayName = "Unnamed"

// User is the domain model for marketplace accounts.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Verified     bool
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the reduced projection returned to clients.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public strips credentials from the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Blocked reports whether an administrator has disabled the account.
func (u *User) Blocked() bool {
	return u.Status == UserStatusBlocked
}

// NormalizeEmail trims and lower-cases an address; emails are matched case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveDisplayName applies the single display-name rule for stored accounts.
func ResolveDisplayName(name *string) string {
	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			return trimmed
		}
	}
	return unnamedDisplayName
}

// ParseUserStatus accepts the statuses an administrator may assign.
func ParseUserStatus(raw string) (UserStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return UserStatusActive, true
	case "blocked":
		return UserStatusBlocked, true
	default:
		return "", false
	}
}
