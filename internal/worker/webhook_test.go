package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/events"
)

func testSender(attempts uint) *WebhookSender {
	s := NewWebhookSender(config.WebhookConfig{Secret: "whsec", MaxAttempts: attempts, Timeout: time.Second}, nil)
	s.initialInterval = time.Millisecond
	return s
}

func testEvent() events.Event {
	return events.Event{ID: "evt-1", Type: events.EventBookingCreated, Subject: "b-1", Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestSignAndVerify(t *testing.T) {
	sig := Sign([]byte("k"), "1700000000", []byte(`{"a":1}`))
	assert.Len(t, sig, 64)
	assert.True(t, Verify([]byte("k"), "1700000000", []byte(`{"a":1}`), "sha256="+sig))
	assert.False(t, Verify([]byte("k"), "1700000001", []byte(`{"a":1}`), "sha256="+sig))
	assert.False(t, Verify([]byte("other"), "1700000000", []byte(`{"a":1}`), "sha256="+sig))
}

func TestDeliverSignsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, Verify([]byte("whsec"), r.Header.Get(HeaderTimestamp), body, r.Header.Get(HeaderSignature)))
		assert.Equal(t, "booking.created", r.Header.Get(HeaderEvent))
		assert.Equal(t, "evt-1", r.Header.Get(HeaderDelivery))

		var got events.Event
		assert.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "b-1", got.Subject)

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, testSender(5).Deliver(context.Background(), srv.URL, testEvent()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := testSender(5).Deliver(context.Background(), srv.URL, testEvent())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeliverGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testSender(3).Deliver(context.Background(), srv.URL, testEvent())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

type recordingDeliverer struct {
	mu   sync.Mutex
	urls []string
	fail bool
}

func (d *recordingDeliverer) Deliver(_ context.Context, url string, _ events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail {
		return errors.New("boom")
	}
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func TestPoolDeliversQueuedEvents(t *testing.T) {
	d := &recordingDeliverer{}
	pool := NewWebhookPool(d, 2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Enqueue("http://hooks.local/a", testEvent()))
	}
	require.Eventually(t, func() bool { return pool.Stats().Delivered == 5 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 5, d.count())
}

func TestPoolCountsFailuresAndDrops(t *testing.T) {
	pool := NewWebhookPool(&recordingDeliverer{fail: true}, 1, 1, nil)

	require.NoError(t, pool.Enqueue("http://hooks.local/a", testEvent()))
	assert.ErrorIs(t, pool.Enqueue("http://hooks.local/a", testEvent()), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	require.Eventually(t, func() bool { return pool.Stats().Failed == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), pool.Stats().Dropped)
}
