package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
)

// EventPublisher fans events out to an external channel (redis pub/sub).
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService relays domain events to the log and the event channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  EventPublisher
	logger     *zap.Logger
	cfg        config.NotifyConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, publisher EventPublisher, logger *zap.Logger, cfg config.NotifyConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.relay)
	n.dispatcher.Subscribe(events.EventTicketAssignmentCancelled, n.relay)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.relay)
	n.dispatcher.Subscribe(events.EventEngineerCheckedIn, n.relay)
	n.dispatcher.Subscribe(events.EventEngineerCheckedOut, n.relay)
}

func (n *NotificationService) relay(ctx context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("engineer_id", event.EngineerID))

	if n.publisher == nil || n.cfg.EventChannel == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.publisher.Publish(ctx, n.cfg.EventChannel, payload); err != nil {
		// fan-out is best effort; operators see the log either way
		n.logger.Warn("event publish failed", zap.Error(err))
	}
	return nil
}
