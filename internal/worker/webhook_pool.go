package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/armada-rental/rental-service/internal/events"
)

// ErrQueueFull is returned when the delivery queue has no free slot.
var ErrQueueFull = errors.New("webhook queue full")

// Deliverer sends one event to one URL.
type Deliverer interface {
	Deliver(ctx context.Context, url string, event events.Event) error
}

type delivery struct {
	url   string
	event events.Event
}

// PoolStats counts delivery outcomes.
type PoolStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// WebhookPool delivers queued events with a fixed number of workers.
type WebhookPool struct {
	queue   chan delivery
	sender  Deliverer
	workers int
	logger  *zap.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewWebhookPool builds a pool. Call Run to start the workers.
func NewWebhookPool(sender Deliverer, workers, queueSize int, logger *zap.Logger) *WebhookPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookPool{
		queue:   make(chan delivery, queueSize),
		sender:  sender,
		workers: workers,
		logger:  logger.Named("webhooks"),
	}
}

// Enqueue schedules a delivery without blocking.
func (p *WebhookPool) Enqueue(url string, event events.Event) error {
	select {
	case p.queue <- delivery{url: url, event: event}:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Run processes deliveries until ctx is cancelled.
func (p *WebhookPool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(gctx)
			return nil
		})
	}
	err := g.Wait()
	if pending := len(p.queue); pending > 0 {
		p.logger.Warn("webhook deliveries abandoned on shutdown", zap.Int("pending", pending))
	}
	return err
}

func (p *WebhookPool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-p.queue:
			if err := p.sender.Deliver(ctx, d.url, d.event); err != nil {
				p.failed.Add(1)
				p.logger.Error("webhook delivery failed",
					zap.String("url", d.url),
					zap.String("event_id", d.event.ID),
					zap.String("event_type", string(d.event.Type)),
					zap.Error(err))
				continue
			}
			p.delivered.Add(1)
		}
	}
}

// Stats returns delivery counters.
func (p *WebhookPool) Stats() PoolStats {
	return PoolStats{
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}
