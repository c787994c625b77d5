package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

// WebhookQueue accepts deliveries for asynchronous sending.
type WebhookQueue interface {
	Enqueue(url string, event events.Event) error
}

// NotificationService fans domain events out to the configured webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      WebhookQueue
	urls       []string
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue WebhookQueue, urls []string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	targets := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			targets = append(targets, u)
		}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		urls:       targets,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleEvent)
}

// Enabled reports whether any webhook target is configured.
func (n *NotificationService) Enabled() bool {
	return len(n.urls) > 0 && n.queue != nil
}

// DispatchCustom publishes an operator-defined event to the webhooks.
func (n *NotificationService) DispatchCustom(ctx context.Context, actor *domain.User, eventType, subject string, payload map[string]any) (*events.Event, error) {
	if !n.Enabled() {
		return nil, apperrors.NewDomainError("WEBHOOKS_DISABLED", "no webhook targets configured", http.StatusServiceUnavailable, nil)
	}
	t := events.EventType(strings.TrimSpace(eventType))
	if !events.ValidCustomType(t) {
		return nil, apperrors.NewValidationError("event type must be a dotted lowercase name", map[string]any{"event": eventType})
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      t,
		Subject:   strings.TrimSpace(subject),
		Actor:     events.Actor{UserID: actor.ID, Role: actor.Role},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Info("event", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)), zap.String("subject", event.Subject))
	if n.queue == nil {
		return nil
	}
	for _, url := range n.urls {
		if err := n.queue.Enqueue(url, event); err != nil {
			n.logger.Warn("enqueue webhook",
				zap.String("url", url),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
	return nil
}
