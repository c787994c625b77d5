package session

import (
	"context"

	"github.com/armada-rental/rental-service/internal/domain"
)

// AuthEvent names a change reported by the provider.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Listener receives provider auth events. sess is nil when there is no session.
type Listener func(event AuthEvent, sess *domain.Session)

// Subscription is returned by OnAuthStateChange.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// SignUpOptions carries profile data submitted with a sign-up.
type SignUpOptions struct {
	Name  string
	Phone string
}

// UserAttributes lists the profile fields a user may change. Nil fields are left untouched.
type UserAttributes struct {
	Email    *string
	Password *string
	Name     *string
	Phone    *string
}

// Provider is the remote session authority.
type Provider interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*domain.Session, error)
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, attrs UserAttributes) (domain.Identity, error)
	OnAuthStateChange(listener Listener) Subscription
}
