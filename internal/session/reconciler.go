package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/armada-rental/rental-service/internal/domain"
)

const defaultEventBuffer = 64

// Options configures a Reconciler.
type Options struct {
	Logger *zap.Logger
	// AllowedRoles restricts which roles may hold a session. Empty allows every role.
	AllowedRoles []domain.Role
	EventBuffer  int
}

type providerEvent struct {
	event AuthEvent
	sess  *domain.Session
}

// Reconciler merges the persisted identity and the remote provider into one state.
// Provider events are applied in delivery order by a single goroutine.
type Reconciler struct {
	provider Provider
	store    *IdentityStore
	logger   *zap.Logger
	allowed  map[domain.Role]struct{}

	mu      sync.RWMutex
	state   State
	gen     uint64
	changed chan struct{}

	// apply serialises state transitions together with their store writes.
	apply sync.Mutex

	restores singleflight.Group
	events   chan providerEvent
	handled  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	lifecycle sync.Mutex
	started   bool
	stopped   bool
	sub       Subscription
	loopDone  chan struct{}
}

// NewReconciler builds a reconciler in the Booting phase.
func NewReconciler(provider Provider, store *IdentityStore, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	var allowed map[domain.Role]struct{}
	if len(opts.AllowedRoles) > 0 {
		allowed = make(map[domain.Role]struct{}, len(opts.AllowedRoles))
		for _, role := range opts.AllowedRoles {
			allowed[role] = struct{}{}
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		provider: provider,
		store:    store,
		logger:   logger.Named("session"),
		allowed:  allowed,
		changed:  make(chan struct{}),
		events:   make(chan providerEvent, buffer),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
}

// Init restores the cached identity optimistically, subscribes to provider
// events and starts the canonical restore in the background.
func (r *Reconciler) Init(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopped {
		return ErrTornDown
	}
	if r.started {
		return nil
	}
	r.started = true

	r.apply.Lock()
	cached, ok, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("read persisted identity", zap.Error(err))
	}
	r.update(func(s *State) {
		s.IsLoading = true
		if ok && r.admitted(cached.Role) {
			s.IsAuthenticated = true
			s.IsHydrated = true
			s.Identity = &cached
		}
	})
	r.apply.Unlock()

	r.sub = r.provider.OnAuthStateChange(r.enqueue)
	go r.loop()
	go r.Restore(r.ctx)
	return nil
}

// Teardown releases the provider subscription and stops the event loop.
func (r *Reconciler) Teardown() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	r.cancel()
	if r.started {
		<-r.loopDone
	}
}

// State returns a copy of the current state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyState()
}

// Changed returns a channel closed on the next state change.
func (r *Reconciler) Changed() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changed
}

func (r *Reconciler) watch() (State, <-chan struct{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyState(), r.changed
}

func (r *Reconciler) copyState() State {
	st := r.state
	if st.Identity != nil {
		id := *st.Identity
		st.Identity = &id
	}
	return st
}

// Restore queries the provider and reconciles the result. Concurrent calls
// share one provider round-trip.
func (r *Reconciler) Restore(ctx context.Context) State {
	ch := r.restores.DoChan("restore", func() (any, error) {
		r.restore(r.ctx)
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return r.State()
}

// RequestReinit starts a restore unless one is already running.
func (r *Reconciler) RequestReinit() {
	if r.ctx.Err() != nil {
		return
	}
	go r.Restore(r.ctx)
}

func (r *Reconciler) restore(ctx context.Context) {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()
	r.update(func(s *State) { s.IsLoading = true })

	sess, err := r.provider.GetSession(ctx)
	if ctx.Err() != nil {
		r.update(func(s *State) { s.IsLoading = false })
		return
	}

	r.apply.Lock()
	defer r.apply.Unlock()

	r.mu.RLock()
	superseded := r.gen != gen
	r.mu.RUnlock()
	if superseded {
		r.logger.Debug("restore superseded by newer event")
		r.update(func(s *State) { s.IsLoading = false })
		return
	}
	if err != nil {
		r.logger.Warn("restore session failed, continuing anonymous", zap.Error(err))
		r.becomeAnonymous(ctx)
		return
	}
	if sess == nil || sess.User.Empty() {
		r.becomeAnonymous(ctx)
		return
	}
	if !r.admitted(sess.User.Role) {
		r.logger.Warn("restored session role not permitted", zap.String("role", string(sess.User.Role)))
		r.becomeAnonymous(ctx)
		go r.signOutQuietly()
		return
	}
	r.becomeAuthenticated(ctx, sess.User)
}

func (r *Reconciler) enqueue(event AuthEvent, sess *domain.Session) {
	select {
	case r.events <- providerEvent{event: event, sess: sess}:
	case <-r.ctx.Done():
	}
}

func (r *Reconciler) loop() {
	defer close(r.loopDone)
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
			r.handled.Add(1)
		}
	}
}

func (r *Reconciler) handle(ev providerEvent) {
	r.apply.Lock()
	defer r.apply.Unlock()

	r.logger.Debug("auth event", zap.String("event", string(ev.event)))
	switch {
	case ev.event == EventSignedOut, ev.sess == nil, ev.sess.User.Empty():
		r.becomeAnonymous(r.ctx)
	case !r.admitted(ev.sess.User.Role):
		r.logger.Warn("session role not permitted", zap.String("role", string(ev.sess.User.Role)))
		r.becomeAnonymous(r.ctx)
		go r.signOutQuietly()
	default:
		r.becomeAuthenticated(r.ctx, ev.sess.User)
	}
}

// Login signs in with the provider and writes the identity to the store before returning.
func (r *Reconciler) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	r.update(func(s *State) { s.IsLoading = true })
	sess, err := r.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		r.update(func(s *State) { s.IsLoading = false })
		return domain.Identity{}, fmt.Errorf("sign in: %w", err)
	}
	return r.establish(ctx, sess)
}

// SignUp registers with the provider. When the provider returns a session the
// user is signed in immediately; otherwise the state stays anonymous.
func (r *Reconciler) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (domain.Identity, error) {
	r.update(func(s *State) { s.IsLoading = true })
	sess, err := r.provider.SignUp(ctx, email, password, opts)
	if err != nil {
		r.update(func(s *State) { s.IsLoading = false })
		return domain.Identity{}, fmt.Errorf("sign up: %w", err)
	}
	if sess == nil || sess.AccessToken == "" {
		r.update(func(s *State) { s.IsLoading = false })
		if sess == nil {
			return domain.Identity{}, nil
		}
		return sess.User, nil
	}
	return r.establish(ctx, sess)
}

func (r *Reconciler) establish(ctx context.Context, sess *domain.Session) (domain.Identity, error) {
	if sess == nil || sess.User.Empty() {
		r.apply.Lock()
		r.becomeAnonymous(ctx)
		r.apply.Unlock()
		return domain.Identity{}, fmt.Errorf("sign in: provider returned no user")
	}
	if !r.admitted(sess.User.Role) {
		if err := r.provider.SignOut(ctx); err != nil {
			r.logger.Warn("sign out after role denial", zap.Error(err))
		}
		r.apply.Lock()
		r.becomeAnonymous(ctx)
		r.apply.Unlock()
		return domain.Identity{}, &RoleDeniedError{Role: sess.User.Role}
	}
	r.apply.Lock()
	r.becomeAuthenticated(ctx, sess.User)
	r.apply.Unlock()
	return sess.User, nil
}

// Logout signs out remotely and clears local state. Local state is cleared
// even when the provider call fails; that error is returned.
func (r *Reconciler) Logout(ctx context.Context) error {
	err := r.provider.SignOut(ctx)
	if err != nil {
		r.logger.Warn("provider sign out failed", zap.Error(err))
	}
	r.apply.Lock()
	r.becomeAnonymous(ctx)
	r.apply.Unlock()
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// ForceLogout clears every persisted key and the in-memory state. The remote
// sign-out is best effort.
func (r *Reconciler) ForceLogout(ctx context.Context) {
	r.apply.Lock()
	r.becomeAnonymous(ctx)
	r.apply.Unlock()
	if err := r.provider.SignOut(ctx); err != nil {
		r.logger.Warn("provider sign out during forced logout", zap.Error(err))
	}
}

// UpdateUser changes profile attributes and refreshes the cached identity.
func (r *Reconciler) UpdateUser(ctx context.Context, attrs UserAttributes) (domain.Identity, error) {
	id, err := r.provider.UpdateUser(ctx, attrs)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("update user: %w", err)
	}
	r.apply.Lock()
	defer r.apply.Unlock()
	if r.State().IsAuthenticated && !id.Empty() {
		r.becomeAuthenticated(ctx, id)
	}
	return id, nil
}

func (r *Reconciler) admitted(role domain.Role) bool {
	if r.allowed == nil {
		return true
	}
	_, ok := r.allowed[role]
	return ok
}

func (r *Reconciler) signOutQuietly() {
	if err := r.provider.SignOut(r.ctx); err != nil {
		r.logger.Warn("sign out denied role", zap.Error(err))
	}
}

// becomeAuthenticated and becomeAnonymous must be called with apply held.
func (r *Reconciler) becomeAuthenticated(ctx context.Context, id domain.Identity) {
	r.transition(authenticatedState(id))
	if err := r.store.Save(ctx, id); err != nil {
		r.logger.Warn("persist identity", zap.Error(err))
	}
}

func (r *Reconciler) becomeAnonymous(ctx context.Context) {
	r.transition(anonymousState())
	if err := r.store.Clear(ctx); err != nil {
		r.logger.Warn("clear persisted identity", zap.Error(err))
	}
}

func (r *Reconciler) transition(next State) {
	r.mu.Lock()
	r.gen++
	r.state = next
	r.notifyLocked()
	r.mu.Unlock()
}

func (r *Reconciler) update(fn func(*State)) {
	r.mu.Lock()
	fn(&r.state)
	r.notifyLocked()
	r.mu.Unlock()
}

func (r *Reconciler) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}
