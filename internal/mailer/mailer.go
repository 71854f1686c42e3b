package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/config"
)

// ErrNotConfigured is returned when no mail transport is available.
var ErrNotConfigured = errors.New("email service not configured")

// Message is a plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the transport from configuration.
func New(cfg config.NotificationConfig, logger *zap.Logger) Mailer {
	switch {
	case cfg.Mode == config.NotificationModeLog:
		logger.Warn("email delivery in log mode; passcodes are written to the log")
		return NewLogMailer(logger)
	case cfg.SMTPConfigured():
		return NewSMTPMailer(cfg)
	default:
		logger.Warn("SMTP not configured; OTP delivery will fail")
		return unconfigured{}
	}
}

type unconfigured struct{}

func (unconfigured) Send(context.Context, Message) error {
	return ErrNotConfigured
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a development mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (log mode)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

func buildMessage(msg Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", msg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return sb.String()
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
