package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/config"
	"github.com/spec-kit/ticket-sla/internal/events"
	"github.com/spec-kit/ticket-sla/internal/sla"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventTicketFirstResponse, n.handleFirstResponse)
	n.dispatcher.Subscribe(events.EventTicketSLAStatusChanged, n.handleSLAStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketMessageAdded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleFirstResponse(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketFirstResponsePayload)
	if payload.Breached {
		n.logger.Warn("TicketFirstResponseBreached", zap.String("ticket_id", event.TicketID), zap.Time("due_at", payload.DueAt))
	} else {
		n.logger.Info("TicketFirstResponse", zap.String("ticket_id", event.TicketID))
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// handleSLAStatusChanged escalates tickets entering warn or overdue.
// Transitions back to normal, after a calendar change, are only logged.
func (n *NotificationService) handleSLAStatusChanged(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketSLAStatusChangedPayload)
	fields := []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)),
		zap.Int("remaining_minutes", payload.RemainingMinutes),
		zap.Bool("critical", payload.Critical),
	}
	switch payload.NewStatus {
	case sla.StatusOverdue:
		n.logger.Warn("TicketSLAOverdue", fields...)
	case sla.StatusWarn:
		n.logger.Info("TicketSLAWarn", fields...)
	default:
		n.logger.Info("TicketSLAStatusChanged", fields...)
		return nil
	}
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
