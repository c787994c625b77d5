package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/session"
)

// Keys under which the access token is kept.
const (
	KeyAccessToken = "access_token"
	KeyExpiresAt   = "access_token_expires_at"
)

const defaultRefreshWindow = 2 * time.Minute

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Tokens persists the access token between runs.
	Tokens session.KeyValueStore
	Logger *zap.Logger
	// RefreshWindow is how close to expiry GetSession refreshes the token.
	RefreshWindow time.Duration
	HTTPClient    *http.Client
}

// Client talks to the rental API and implements session.Provider.
type Client struct {
	baseURL       string
	http          *http.Client
	tokens        session.KeyValueStore
	logger        *zap.Logger
	refreshWindow time.Duration
	now           func() time.Time

	mu        sync.Mutex
	listeners map[int]session.Listener
	nextID    int
}

var _ session.Provider = (*Client)(nil)

// New builds a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.RefreshWindow
	if window <= 0 {
		window = defaultRefreshWindow
	}
	return &Client{
		baseURL:       base,
		http:          hc,
		tokens:        cfg.Tokens,
		logger:        logger.Named("authclient"),
		refreshWindow: window,
		now:           time.Now,
		listeners:     map[int]session.Listener{},
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call performs an authenticated JSON request. body and out may be nil.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, _, err := c.tokens.Get(ctx, KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	return c.do(ctx, method, path, query, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	} else if len(raw) > 0 {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	r.Close()
}
