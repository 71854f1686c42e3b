package domain

import "time"

// OTPPurpose scopes a passcode to a single flow.
type OTPPurpose string

const (
	OTPPurposeRegister OTPPurpose = "register"
	OTPPurposeLogin    OTPPurpose = "login"
	OTPPurposeVerify   OTPPurpose = "verify"
	OTPPurposeReset    OTPPurpose = "reset"
)

// OTPRecord is a stored one-time passcode. Only the bcrypt hash of the code is kept.
type OTPRecord struct {
	ID        string
	Email     string
	Purpose   OTPPurpose
	CodeHash  string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Active reports whether the record has been neither verified nor superseded.
// Expiry is not considered.
func (r *OTPRecord) Active() bool {
	return r.UsedAt == nil
}

// ExpiredAt reports whether the record expired strictly before now.
func (r *OTPRecord) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
