package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOTPIssued       EventType = "otp_issued"
	EventOTPVerified     EventType = "otp_verified"
	EventSignupCompleted EventType = "signup_completed"
	EventEmailVerified   EventType = "email_verified"
	EventLoginSucceeded  EventType = "login_succeeded"
	EventPasswordReset   EventType = "password_reset"
)

// Event represents an account lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, email string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		Timestamp: at,
		Payload:   payload,
	}
}

// OTPPayload describes passcode lifecycle events.
type OTPPayload struct {
	Purpose    domain.OTPPurpose `json:"purpose"`
	ExpiresAt  time.Time         `json:"expires_at,omitempty"`
	Superseded int64             `json:"superseded,omitempty"`
}

// LoginPayload records how a session was obtained.
type LoginPayload struct {
	Method string `json:"method"`
}

// SignupPayload distinguishes new rows from reactivated unverified rows.
type SignupPayload struct {
	Reactivated bool `json:"reactivated"`
}
