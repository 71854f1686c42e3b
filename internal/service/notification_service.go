package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/domain"
	"github.com/spec-kit/apnabook-auth/internal/mailer"
)

// OTPSender delivers a plaintext passcode out-of-band.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
}

// NotificationService composes passcode emails and hands them to the mail transport.
type NotificationService struct {
	mailer mailer.Mailer
	logger *zap.Logger
	from   string
	ttl    time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(m mailer.Mailer, logger *zap.Logger, cfg config.NotificationConfig, otpTTL time.Duration) *NotificationService {
	return &NotificationService{
		mailer: m,
		logger: logger,
		from:   cfg.EmailFrom,
		ttl:    otpTTL,
	}
}

// SendOTP sends one passcode email. Failures are returned, never retried.
func (n *NotificationService) SendOTP(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	msg := mailer.Message{
		From:    n.from,
		To:      email,
		Subject: otpSubject(purpose),
		Body:    fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, int(n.ttl.Minutes())),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Warn("otp email delivery failed",
			zap.String("email", email),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return err
	}
	n.logger.Debug("otp email sent", zap.String("email", email), zap.String("purpose", string(purpose)))
	return nil
}

func otpSubject(purpose domain.OTPPurpose) string {
	switch purpose {
	case domain.OTPPurposeLogin:
		return "Your login OTP"
	case domain.OTPPurposeReset:
		return "Reset your password"
	default:
		return "Verify your email"
	}
}
