package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/events"
)

type queueStub struct {
	urls   []string
	events []events.Event
	err    error
}

func (q *queueStub) Enqueue(url string, event events.Event) error {
	q.urls = append(q.urls, url)
	q.events = append(q.events, event)
	return q.err
}

func TestNotificationFansOutDomainEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	queue := &queueStub{}
	svc := NewNotificationService(dispatcher, queue, []string{"https://a.example/hook", " ", "https://b.example/hook"}, nil)
	svc.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventBookingCreated, Subject: "b-1"}))
	assert.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, queue.urls)
	assert.Equal(t, queue.events[0].ID, queue.events[1].ID)
}

func TestDispatchCustom(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	queue := &queueStub{err: errors.New("queue full")}
	svc := NewNotificationService(dispatcher, queue, []string{"https://a.example/hook"}, nil)
	svc.RegisterHandlers()
	actor := &domain.User{ID: "u-disp", Role: domain.RoleDispatcher}
	ctx := context.Background()

	event, err := svc.DispatchCustom(ctx, actor, "vehicle.maintenance_due", "avanza-01", map[string]any{"km": 50000})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	require.Len(t, queue.events, 1)
	assert.Equal(t, event.ID, queue.events[0].ID)
	assert.Equal(t, "u-disp", queue.events[0].Actor.UserID)

	_, err = svc.DispatchCustom(ctx, actor, "booking.created", "", nil)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))

	disabled := NewNotificationService(dispatcher, nil, nil, nil)
	_, err = disabled.DispatchCustom(ctx, actor, "vehicle.maintenance_due", "", nil)
	assert.Equal(t, "WEBHOOKS_DISABLED", errorCode(err))
}
