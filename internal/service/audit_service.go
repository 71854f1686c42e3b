package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/apnabook-auth/internal/events"
)

// AuditService writes account lifecycle events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventOTPIssued, a.handleOTPEvent)
	a.dispatcher.Subscribe(events.EventOTPVerified, a.handleOTPEvent)
	a.dispatcher.Subscribe(events.EventSignupCompleted, a.handleAccountEvent)
	a.dispatcher.Subscribe(events.EventEmailVerified, a.handleAccountEvent)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleAccountEvent)
	a.dispatcher.Subscribe(events.EventPasswordReset, a.handleAccountEvent)
}

func (a *AuditService) handleOTPEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("email", event.Email),
		zap.Time("at", event.Timestamp),
	}
	if payload, ok := event.Payload.(events.OTPPayload); ok {
		fields = append(fields, zap.String("purpose", string(payload.Purpose)))
		if payload.Superseded > 0 {
			fields = append(fields, zap.Int64("superseded", payload.Superseded))
		}
	}
	a.logger.Info(string(event.Type), fields...)
	return nil
}

func (a *AuditService) handleAccountEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.String("email", event.Email),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}
