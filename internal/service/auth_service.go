package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/events"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	apperrors "github.com/spec-kit/apnabook-auth/pkg/util"
)

// ErrAlreadyVerified is returned when email verification targets a verified account.
var ErrAlreadyVerified = apperrors.NewDomainError("ALREADY_VERIFIED", "Email already verified", http.StatusConflict, nil)

// SignupInput carries the details submitted with a signup OTP request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService coordinates signup, login, verification and reset flows.
type AuthService struct {
	users       repository.UserRepository
	pending     repository.PendingSignupRepository
	otp         *OTPService
	tokenMgr    *auth.TokenManager
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	bcryptCost  int
	minPassword int
	now         func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PendingSignupRepo repository.PendingSignupRepository
	OTP               *OTPService
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPassword := cfg.Auth.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 6
	}
	return &AuthService{
		users:       deps.UserRepo,
		pending:     deps.PendingSignupRepo,
		otp:         deps.OTP,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes),
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		bcryptCost:  cfg.Auth.BcryptCost,
		minPassword: minPassword,
		now:         time.Now,
	}
}

// RequestSignupOTP stores the pending signup and emails a registration passcode.
func (s *AuthService) RequestSignupOTP(ctx context.Context, in SignupInput) error {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return apperrors.NewValidationError("fullName, email and password are required", nil)
	}
	if err := s.checkPasswordLength(in.Password); err != nil {
		return err
	}

	existing, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.Verified {
		return apperrors.NewConflict("Email already registered", nil)
	}

	if err := s.otp.Cooldown(ctx, email, domain.OTPPurposeRegister); err != nil {
		return err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	pending := &domain.PendingSignup{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		UpdatedAt:    s.now(),
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return fmt.Errorf("store pending signup: %w", err)
	}

	return s.otp.IssueAndSend(ctx, email, domain.OTPPurposeRegister)
}

// VerifySignupOTP completes a pending signup and returns a session for the new account.
func (s *AuthService) VerifySignupOTP(ctx context.Context, email, code string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, apperrors.NewValidationError("email and otp are required", nil)
	}

	if err := s.otp.Verify(ctx, email, domain.OTPPurposeRegister, code); err != nil {
		return nil, err
	}

	pending, err := s.pending.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("No signup request found. Please request OTP again.", nil)
		}
		return nil, err
	}

	user, reactivated, err := s.createOrActivate(ctx, pending)
	if err != nil {
		return nil, err
	}

	if err := s.pending.Delete(ctx, email); err != nil {
		s.logger.Warn("failed to delete pending signup", zap.String("email", email), zap.Error(err))
	}

	s.publish(ctx, events.EventSignupCompleted, user, events.SignupPayload{Reactivated: reactivated})
	return s.issueSession(user)
}

// createOrActivate materialises a verified account from pending data. An unverified row
// with the same email is reactivated in place; a verified one is a conflict.
func (s *AuthService) createOrActivate(ctx context.Context, pending *domain.PendingSignup) (*domain.User, bool, error) {
	existing, err := s.findUser(ctx, pending.Email)
	if err != nil {
		return nil, false, err
	}
	now := s.now()

	if existing != nil {
		if existing.Verified {
			return nil, false, apperrors.NewConflict("Email already registered", nil)
		}
		existing.Name = pending.Name
		existing.PasswordHash = pending.PasswordHash
		existing.Role = domain.NormalizeRole(string(existing.Role))
		existing.Status = domain.UserStatusActive
		existing.Verified = true
		existing.UpdatedAt = now
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("activate user: %w", err)
		}
		return existing, true, nil
	}

	user := &domain.User{
		Name:         pending.Name,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Role:         domain.RoleUser,
		Verified:     true,
		Status:       domain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, false, apperrors.NewConflict("Email already registered", nil)
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, false, nil
}

// Login authenticates with email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	if !user.Verified {
		return nil, apperrors.NewForbidden("Email not verified")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	if user.Blocked() {
		return nil, apperrors.NewForbidden("Account blocked")
	}

	s.publish(ctx, events.EventLoginSucceeded, user, events.LoginPayload{Method: "password"})
	return s.issueSession(user)
}

// RequestLoginOTP emails a login passcode. Unverified accounts receive a verification
// passcode instead and the call reports Forbidden.
func (s *AuthService) RequestLoginOTP(ctx context.Context, email string) error {
	user, err := s.requireUser(ctx, email)
	if err != nil {
		return err
	}

	if !user.Verified {
		if err := s.otp.IssueAndSend(ctx, user.Email, domain.OTPPurposeVerify); err != nil {
			return err
		}
		return apperrors.NewForbidden("Email not verified. OTP sent for verification.")
	}

	return s.otp.IssueAndSend(ctx, user.Email, domain.OTPPurposeLogin)
}

// VerifyLoginOTP exchanges a login passcode for a session.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code string) (*domain.Session, error) {
	if code == "" {
		return nil, apperrors.NewValidationError("email and otp are required", nil)
	}
	user, err := s.requireUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		return nil, apperrors.NewForbidden("Email not verified")
	}

	if err := s.otp.Verify(ctx, user.Email, domain.OTPPurposeLogin, code); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventLoginSucceeded, user, events.LoginPayload{Method: "otp"})
	return s.issueSession(user)
}

// VerifyEmailOTP marks an unverified account verified and active.
func (s *AuthService) VerifyEmailOTP(ctx context.Context, email, code string) (*domain.Session, error) {
	if code == "" {
		return nil, apperrors.NewValidationError("email and otp are required", nil)
	}
	user, err := s.requireUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return nil, ErrAlreadyVerified
	}

	if err := s.otp.Verify(ctx, user.Email, domain.OTPPurposeVerify, code); err != nil {
		return nil, err
	}

	user.Verified = true
	user.Status = domain.UserStatusActive
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("verify user: %w", err)
	}

	s.publish(ctx, events.EventEmailVerified, user, nil)
	return s.issueSession(user)
}

// RequestPasswordResetOTP emails a reset passcode, subject to the cooldown.
func (s *AuthService) RequestPasswordResetOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("Email is required", nil)
	}
	user, err := s.requireUser(ctx, email)
	if err != nil {
		return err
	}

	if err := s.otp.Cooldown(ctx, user.Email, domain.OTPPurposeReset); err != nil {
		return err
	}
	return s.otp.IssueAndSend(ctx, user.Email, domain.OTPPurposeReset)
}

// ResetPassword replaces the password hash after a valid reset passcode.
// Verification state and role are untouched.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = domain.NormalizeEmail(email)
	if email == "" || code == "" || newPassword == "" {
		return apperrors.NewValidationError("email, otp and newPassword are required", nil)
	}
	if err := s.checkPasswordLength(newPassword); err != nil {
		return err
	}

	user, err := s.requireUser(ctx, email)
	if err != nil {
		return err
	}

	if err := s.otp.Verify(ctx, user.Email, domain.OTPPurposeReset, code); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.publish(ctx, events.EventPasswordReset, user, nil)
	return nil
}

// Me returns the account behind an authenticated session.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) checkPasswordLength(password string) error {
	if utf8.RuneCountInString(password) < s.minPassword {
		return apperrors.NewValidationError(
			fmt.Sprintf("Password must be at least %d characters", s.minPassword), nil)
	}
	return nil
}

// findUser returns nil without error when no account exists.
func (s *AuthService) findUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) requireUser(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email is required", nil)
	}
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFound("user", nil)
	}
	return user, nil
}

func (s *AuthService) issueSession(user *domain.User) (*domain.Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Session{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewEvent(eventType, user.Email, s.now(), payload)
	event.UserID = user.ID
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
