package worker

import (
	"context"

	"github.com/armada-rental/rental-service/internal/service"
)

// StartNotificationWorker registers notification handlers and runs the
// delivery pool until ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, pool *WebhookPool) <-chan error {
	done := make(chan error, 1)
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if pool == nil {
		close(done)
		return done
	}
	go func() {
		done <- pool.Run(ctx)
		close(done)
	}()
	return done
}
