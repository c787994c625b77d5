package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
	apperrors "github.com/armada-rental/rental-service/pkg/util/errorutil"
)

const maxMessageLength = 4096

// MessageReceipt is the gateway's answer to a send.
type MessageReceipt struct {
	Target string `json:"target"`
	Status bool   `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// MessagingService forwards WhatsApp/SMS messages to the configured gateway.
type MessagingService struct {
	client      *http.Client
	endpoint    string
	token       string
	countryCode string
	logger      *zap.Logger
}

// NewMessagingService constructs the service.
func NewMessagingService(cfg config.MessagingConfig, logger *zap.Logger) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MessagingService{
		client:      &http.Client{Timeout: timeout},
		endpoint:    strings.TrimSpace(cfg.URL),
		token:       cfg.Token,
		countryCode: cfg.CountryCode,
		logger:      logger,
	}
}

// Enabled reports whether a gateway is configured.
func (s *MessagingService) Enabled() bool {
	return s.endpoint != "" && s.token != ""
}

// Send delivers message to a phone number.
func (s *MessagingService) Send(ctx context.Context, actor *domain.User, target, message string) (*MessageReceipt, error) {
	if !s.Enabled() {
		return nil, apperrors.NewDomainError("MESSAGING_DISABLED", "messaging gateway is not configured", http.StatusServiceUnavailable, nil)
	}
	phone, err := NormalizePhone(target, s.countryCode)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxMessageLength {
		return nil, apperrors.NewValidationError("message must be 1-4096 characters", map[string]any{"field": "message"})
	}

	form := url.Values{"target": {phone}, "message": {message}, "countryCode": {s.countryCode}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", s.token)

	var out struct {
		Status bool   `json:"status"`
		Detail string `json:"detail"`
		Reason string `json:"reason"`
	}
	if err := doJSON(s.client, req, &out); err != nil {
		return nil, apperrors.NewUpstreamError("messaging", err)
	}
	if !out.Status {
		reason := out.Reason
		if reason == "" {
			reason = out.Detail
		}
		return nil, apperrors.NewUpstreamError("messaging", errors.New(reason))
	}

	s.logger.Info("message sent", zap.String("target", phone), zap.String("actor_id", actor.ID))
	return &MessageReceipt{Target: phone, Status: true, Detail: out.Detail}, nil
}

// NormalizePhone strips formatting and rewrites a leading 0 to the country code.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && b.Len() == 0, r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return "", apperrors.NewValidationError("invalid phone number", map[string]any{"target": raw})
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") && countryCode != "" {
		digits = countryCode + strings.TrimPrefix(digits, "0")
	}
	if len(digits) < 8 || len(digits) > 15 {
		return "", apperrors.NewValidationError("invalid phone number", map[string]any{"target": raw})
	}
	return digits, nil
}
