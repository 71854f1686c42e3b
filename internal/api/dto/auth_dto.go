package dto

import (
	"time"

	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// SignupOTPRequest starts a signup. Name is accepted as an alias of FullName.
type SignupOTPRequest struct {
	FullName string `json:"fullName"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DisplayName picks fullName, falling back to name.
func (r SignupOTPRequest) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Name
}

// OTPVerifyRequest carries an email and its passcode.
type OTPVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// EmailRequest carries a lone email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// LoginRequest payload for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest completes an OTP-gated reset.
type PasswordResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// MessageResponse is returned by endpoints without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse standard response for endpoints that issue a session.
type AuthResponse struct {
	Message   string            `json:"message,omitempty"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      domain.PublicUser `json:"user"`
}

// NewAuthResponse builds the session response; the user is always the public projection.
func NewAuthResponse(message string, session *domain.Session) AuthResponse {
	return AuthResponse{
		Message:   message,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User.Public(),
	}
}
