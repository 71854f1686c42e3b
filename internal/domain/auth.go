package domain

import "time"

// Session is an issued bearer credential for a verified user.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}
