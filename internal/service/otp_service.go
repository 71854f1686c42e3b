package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/events"
	"github.com/spec-kit/apnabook-auth/internal/observability"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	apperrors "github.com/spec-kit/apnabook-auth/pkg/util"
)

// Verification outcomes. Each maps to HTTP 400.
var (
	ErrOTPNotFound = apperrors.NewDomainError("OTP_NOT_FOUND", "OTP not found", http.StatusBadRequest, nil)
	ErrOTPExpired  = apperrors.NewDomainError("OTP_EXPIRED", "OTP expired", http.StatusBadRequest, nil)
	ErrOTPMismatch = apperrors.NewDomainError("OTP_MISMATCH", "Invalid OTP", http.StatusBadRequest, nil)
)

// OTPService owns issuance, supersession, cooldown and verification of passcodes.
// It keeps no state between calls; the repository is the only source of truth.
type OTPService struct {
	records    repository.OTPRepository
	sender     OTPSender
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	ttl        time.Duration
	hashCost   int
	now        func() time.Time
	generate   func() (string, error)
}

// OTPDependencies bundles collaborators for the OTP service.
type OTPDependencies struct {
	OTPRepo    repository.OTPRepository
	Sender     OTPSender
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewOTPService builds the service.
func NewOTPService(cfg config.AuthConfig, deps OTPDependencies) *OTPService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		records:    deps.OTPRepo,
		sender:     deps.Sender,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		ttl:        cfg.OTPTTL(),
		hashCost:   cfg.OTPHashCost,
		now:        time.Now,
		generate:   auth.GenerateOTP,
	}
}

// TTL reports how long issued passcodes remain valid.
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue supersedes every unused passcode for (email, purpose), stores the hash of a
// fresh one and returns the plaintext for delivery.
func (s *OTPService) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", apperrors.NewValidationError("email is required", nil)
	}

	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := auth.HashOTP(code, s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	superseded, err := s.records.InvalidateActive(ctx, email, purpose, now)
	if err != nil {
		return "", fmt.Errorf("invalidate otp: %w", err)
	}

	record := &domain.OTPRecord{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	s.metrics.RecordOTP(string(purpose), "issued")
	s.logger.Info("otp issued",
		zap.String("email", email),
		zap.String("purpose", string(purpose)),
		zap.Int64("superseded", superseded),
		zap.Time("expires_at", record.ExpiresAt))
	s.publish(ctx, events.NewEvent(events.EventOTPIssued, email, now, events.OTPPayload{
		Purpose:    purpose,
		ExpiresAt:  record.ExpiresAt,
		Superseded: superseded,
	}))
	return code, nil
}

// Send hands the plaintext to the notification sender.
func (s *OTPService) Send(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	if err := s.sender.SendOTP(ctx, email, code, purpose); err != nil {
		s.metrics.RecordOTP(string(purpose), "send_failed")
		return apperrors.NewDependencyFailure("SEND_FAILED", "failed to send OTP email", err)
	}
	return nil
}

// IssueAndSend issues a passcode and delivers it.
func (s *OTPService) IssueAndSend(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	code, err := s.Issue(ctx, email, purpose)
	if err != nil {
		return err
	}
	return s.Send(ctx, domain.NormalizeEmail(email), code, purpose)
}

// Cooldown refuses re-issuance while an unused, unexpired passcode exists.
// The check is not atomic with Issue: concurrent callers may both pass and the later
// issuance supersedes the earlier one.
func (s *OTPService) Cooldown(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	record, err := s.records.LatestActive(ctx, domain.NormalizeEmail(email), purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	now := s.now()
	if !record.ExpiresAt.After(now) {
		return nil
	}
	retryAfter := RetryAfterSeconds(record.ExpiresAt, now)
	s.metrics.RecordOTP(string(purpose), "throttled")
	return apperrors.NewThrottled(
		fmt.Sprintf("OTP already sent. Request a new OTP after %d minutes.", int(s.ttl.Minutes())),
		retryAfter,
	)
}

// Verify checks code against the newest unused passcode and consumes it on success.
// An expired record is reported but left unused.
func (s *OTPService) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	email = domain.NormalizeEmail(email)
	record, err := s.records.LatestActive(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.RecordOTP(string(purpose), "not_found")
			return ErrOTPNotFound
		}
		return err
	}

	now := s.now()
	if record.ExpiredAt(now) {
		s.metrics.RecordOTP(string(purpose), "expired")
		return ErrOTPExpired
	}
	if !auth.CompareOTP(record.CodeHash, code) {
		s.metrics.RecordOTP(string(purpose), "mismatch")
		return ErrOTPMismatch
	}

	if err := s.records.MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// consumed by a concurrent verify or superseded since the lookup
			s.metrics.RecordOTP(string(purpose), "not_found")
			return ErrOTPNotFound
		}
		return fmt.Errorf("consume otp: %w", err)
	}

	s.metrics.RecordOTP(string(purpose), "verified")
	s.publish(ctx, events.NewEvent(events.EventOTPVerified, email, now, events.OTPPayload{Purpose: purpose}))
	return nil
}

// RetryAfterSeconds is ceil((expiresAt-now)/1s), the wait reported to throttled callers.
func RetryAfterSeconds(expiresAt, now time.Time) int64 {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}

func (s *OTPService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
