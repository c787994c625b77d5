package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/events"
)

// Webhook request headers.
const (
	HeaderEvent     = "X-Rental-Event"
	HeaderDelivery  = "X-Rental-Delivery"
	HeaderTimestamp = "X-Rental-Timestamp"
	HeaderSignature = "X-Rental-Signature"
)

// Sign computes the hex HMAC-SHA256 of "timestamp.body".
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value produced by Sign.
func Verify(secret []byte, timestamp string, body []byte, signature string) bool {
	expected := "sha256=" + Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookSender posts signed event envelopes with exponential backoff.
type WebhookSender struct {
	client          *http.Client
	secret          []byte
	maxAttempts     uint
	initialInterval time.Duration
	maxElapsed      time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewWebhookSender builds a sender from configuration.
func NewWebhookSender(cfg config.WebhookConfig, logger *zap.Logger) *WebhookSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return &WebhookSender{
		client:          &http.Client{Timeout: timeout},
		secret:          []byte(cfg.Secret),
		maxAttempts:     attempts,
		initialInterval: 500 * time.Millisecond,
		maxElapsed:      5 * time.Minute,
		logger:          logger,
		now:             time.Now,
	}
}

// Deliver sends event to url, retrying transport errors, 408, 429 and 5xx responses.
func (s *WebhookSender) Deliver(ctx context.Context, url string, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode event: %w", err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	attempt := 0

	_, err = backoff.Retry(ctx, func() (int, error) {
		attempt++
		return s.post(ctx, url, event, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxAttempts),
		backoff.WithMaxElapsedTime(s.maxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Debug("webhook retry",
				zap.String("url", url),
				zap.String("event_id", event.ID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("deliver %s to %s after %d attempts: %w", event.ID, url, attempt, err)
	}
	return nil
}

func (s *WebhookSender) post(ctx context.Context, url string, event events.Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create webhook request: %w", err))
	}
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(event.Type))
	req.Header.Set(HeaderDelivery, event.ID)
	req.Header.Set(HeaderTimestamp, timestamp)
	if len(s.secret) > 0 {
		req.Header.Set(HeaderSignature, "sha256="+Sign(s.secret, timestamp, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return resp.StatusCode, backoff.RetryAfter(secs)
		}
		return resp.StatusCode, fmt.Errorf("webhook status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("webhook status %d", resp.StatusCode)
	default:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
	}
}
