package domain

import "time"

// PendingSignup holds signup details until the registration OTP is verified.
type PendingSignup struct {
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
