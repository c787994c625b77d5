package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/armada-rental/rental-service/internal/domain"
)

type fakeProvider struct {
	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int

	GetSessionFn func(ctx context.Context) (*domain.Session, error)
	SignInFn     func(ctx context.Context, email, password string) (*domain.Session, error)
	SignUpFn     func(ctx context.Context, email, password string, opts SignUpOptions) (*domain.Session, error)
	SignOutFn    func(ctx context.Context) error
	UpdateUserFn func(ctx context.Context, attrs UserAttributes) (domain.Identity, error)

	getSessionCalls atomic.Int32
	signOutCalls    atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: map[int]Listener{}}
}

func (p *fakeProvider) GetSession(ctx context.Context) (*domain.Session, error) {
	p.getSessionCalls.Add(1)
	if p.GetSessionFn != nil {
		return p.GetSessionFn(ctx)
	}
	return nil, nil
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := p.SignInFn(ctx, email, password)
	if err == nil {
		p.emit(EventSignedIn, sess)
	}
	return sess, err
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*domain.Session, error) {
	return p.SignUpFn(ctx, email, password, opts)
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOutCalls.Add(1)
	var err error
	if p.SignOutFn != nil {
		err = p.SignOutFn(ctx)
	}
	p.emit(EventSignedOut, nil)
	return err
}

func (p *fakeProvider) UpdateUser(ctx context.Context, attrs UserAttributes) (domain.Identity, error) {
	return p.UpdateUserFn(ctx, attrs)
}

func (p *fakeProvider) OnAuthStateChange(listener Listener) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	})
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *fakeProvider) emit(event AuthEvent, sess *domain.Session) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()
	for _, l := range listeners {
		l(event, sess)
	}
}

func sessionFor(id domain.Identity) *domain.Session {
	return &domain.Session{AccessToken: "token-" + id.ID, TokenType: "bearer", User: id}
}
