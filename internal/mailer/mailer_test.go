package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/config"
)

func TestNew_SelectsTransport(t *testing.T) {
	logger := zap.NewNop()

	assert.IsType(t, &LogMailer{}, New(config.NotificationConfig{Mode: config.NotificationModeLog}, logger))
	assert.IsType(t, &SMTPMailer{}, New(config.NotificationConfig{
		Mode:     config.NotificationModeSMTP,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		SMTPUser: "user",
		SMTPPass: "pass",
	}, logger))
}

func TestNew_UnconfiguredFails(t *testing.T) {
	m := New(config.NotificationConfig{Mode: config.NotificationModeSMTP}, zap.NewNop())

	err := m.Send(context.Background(), Message{To: "a@b.com"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildMessage_StripsHeaderInjection(t *testing.T) {
	raw := buildMessage(Message{
		From:    "noreply@apnabook.test",
		To:      "a@b.com",
		Subject: "Verify\r\nBcc: evil@x.com",
		Body:    "line one\nline two",
	})

	assert.Contains(t, raw, "Subject: Verify  Bcc: evil@x.com\r\n")
	assert.Contains(t, raw, "line one\r\nline two")
	assert.NotContains(t, raw, "\r\nBcc:")
}

func TestNewSMTPMailer_FromFallsBackToUser(t *testing.T) {
	m := NewSMTPMailer(config.NotificationConfig{SMTPHost: "h", SMTPUser: "mailer@h"})
	assert.Equal(t, "mailer@h", m.from)
}
