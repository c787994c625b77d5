package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type updateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// GetSession returns the current session, refreshing the token when it is close
// to expiry. A missing, expired or rejected token yields a nil session.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	token, ok, err := c.tokens.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	expiresAt := c.storedExpiry(ctx)
	now := c.now()
	if !expiresAt.IsZero() && !now.Before(expiresAt) {
		c.forgetToken(ctx)
		return nil, nil
	}
	if !expiresAt.IsZero() && expiresAt.Sub(now) < c.refreshWindow {
		return c.refresh(ctx, token)
	}

	var sess domain.Session
	err = c.do(ctx, http.MethodGet, "/auth/session", nil, token, nil, &sess)
	if IsStatus(err, http.StatusUnauthorized) {
		c.forgetToken(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.AccessToken = token
	return &sess, nil
}

func (c *Client) refresh(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, token, nil, &sess)
	if IsStatus(err, http.StatusUnauthorized) {
		c.forgetToken(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := c.rememberToken(ctx, &sess); err != nil {
		return nil, err
	}
	c.emit(session.EventTokenRefreshed, &sess)
	return &sess, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	var sess domain.Session
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, "", credentials{Email: email, Password: password}, &sess); err != nil {
		return nil, err
	}
	if err := c.rememberToken(ctx, &sess); err != nil {
		return nil, err
	}
	c.emit(session.EventSignedIn, &sess)
	return &sess, nil
}

// SignUp registers an account. The API signs the user in when it returns a token.
func (c *Client) SignUp(ctx context.Context, email, password string, opts session.SignUpOptions) (*domain.Session, error) {
	var sess domain.Session
	body := credentials{Email: email, Password: password, Name: opts.Name, Phone: opts.Phone}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", nil, "", body, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return &sess, nil
	}
	if err := c.rememberToken(ctx, &sess); err != nil {
		return nil, err
	}
	c.emit(session.EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the token remotely and forgets it locally. The local token
// is dropped even when the request fails.
func (c *Client) SignOut(ctx context.Context) error {
	token, _, err := c.tokens.Get(ctx, KeyAccessToken)
	if err != nil {
		c.logger.Warn("read access token", zap.Error(err))
	}
	var remoteErr error
	if token != "" {
		remoteErr = c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil, nil)
		if IsStatus(remoteErr, http.StatusUnauthorized) {
			remoteErr = nil
		}
	}
	c.forgetToken(ctx)
	c.emit(session.EventSignedOut, nil)
	return remoteErr
}

// UpdateUser changes profile attributes of the signed-in user.
func (c *Client) UpdateUser(ctx context.Context, attrs session.UserAttributes) (domain.Identity, error) {
	var id domain.Identity
	body := updateUserRequest{Email: attrs.Email, Password: attrs.Password, Name: attrs.Name, Phone: attrs.Phone}
	if err := c.Call(ctx, http.MethodPut, "/auth/user", nil, body, &id); err != nil {
		return domain.Identity{}, err
	}
	c.emit(session.EventUserUpdated, &domain.Session{User: id})
	return id, nil
}

// OnAuthStateChange registers listener until the subscription is released.
func (c *Client) OnAuthStateChange(listener session.Listener) session.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	return session.SubscriptionFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	})
}

func (c *Client) emit(event session.AuthEvent, sess *domain.Session) {
	c.mu.Lock()
	listeners := make([]session.Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()
	for _, l := range listeners {
		l(event, sess)
	}
}

func (c *Client) rememberToken(ctx context.Context, sess *domain.Session) error {
	if sess.AccessToken == "" {
		return errors.New("api returned an empty access token")
	}
	if err := c.tokens.Set(ctx, KeyAccessToken, sess.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if !sess.ExpiresAt.IsZero() {
		if err := c.tokens.Set(ctx, KeyExpiresAt, sess.ExpiresAt.UTC().Format(time.RFC3339)); err != nil {
			c.logger.Warn("store token expiry", zap.Error(err))
		}
	}
	return nil
}

func (c *Client) storedExpiry(ctx context.Context) time.Time {
	raw, ok, err := c.tokens.Get(ctx, KeyExpiresAt)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *Client) forgetToken(ctx context.Context) {
	for _, key := range []string{KeyAccessToken, KeyExpiresAt} {
		if err := c.tokens.Remove(ctx, key); err != nil {
			c.logger.Warn("remove token", zap.String("key", key), zap.Error(err))
		}
	}
}
