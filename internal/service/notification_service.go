package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpline-labs/escalation-gateway/internal/events"
)

// Publisher fans events out to external subscribers.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, payload any) error
	Enabled() bool
}

// NotificationService relays escalation events to the log and, when configured, to a pub/sub channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	channel    string
	logger     *zap.Logger
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, channel string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEscalationTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventEscalationDeduplicated, n.handleDeduplicated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("EscalationTicketCreated",
		zap.String("ticket_id", event.TicketID),
		zap.String("identity", event.Identity),
		zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) handleDeduplicated(ctx context.Context, event events.Event) error {
	n.logger.Info("EscalationDeduplicated",
		zap.String("ticket_id", event.TicketID),
		zap.String("identity", event.Identity),
		zap.Any("payload", event.Payload))
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	if n.publisher == nil || !n.publisher.Enabled() || n.channel == "" {
		return nil
	}
	if err := n.publisher.PublishJSON(ctx, n.channel, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	n.logger.Debug("event forwarded",
		zap.String("channel", n.channel),
		zap.String("event_type", string(event.Type)))
	return nil
}
