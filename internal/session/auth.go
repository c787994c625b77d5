package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
)

// Config wires an Auth.
type Config struct {
	Provider     Provider
	Local        KeyValueStore
	Flags        FlagStore
	Logger       *zap.Logger
	AllowedRoles []domain.Role
	ReadyTimeout time.Duration
	Home         string
}

// Auth is the process-wide session context: one reconciler with its gate and guard.
type Auth struct {
	reconciler *Reconciler
	gate       *Gate
	guard      *Guard
	flags      *Flags
}

// New builds an Auth. Call Init before use and Teardown when done.
func New(cfg Config) *Auth {
	flags := NewFlags(cfg.Flags)
	r := NewReconciler(cfg.Provider, NewIdentityStore(cfg.Local), Options{
		Logger:       cfg.Logger,
		AllowedRoles: cfg.AllowedRoles,
	})
	return &Auth{
		reconciler: r,
		gate:       NewGate(r, cfg.ReadyTimeout),
		guard:      NewGuard(r, flags, cfg.Home, cfg.Logger),
		flags:      flags,
	}
}

func (a *Auth) Init(ctx context.Context) error { return a.reconciler.Init(ctx) }
func (a *Auth) Teardown()                      { a.reconciler.Teardown() }

func (a *Auth) Reconciler() *Reconciler { return a.reconciler }
func (a *Auth) Gate() *Gate             { return a.gate }
func (a *Auth) Guard() *Guard           { return a.guard }

// Snapshot returns the flat view of the current state.
func (a *Auth) Snapshot() Snapshot {
	return a.reconciler.State().Snapshot()
}

func (a *Auth) WaitForSessionReady(ctx context.Context, timeout time.Duration) bool {
	return a.gate.WaitForSessionReady(ctx, timeout)
}

func (a *Auth) EnsureSessionReady(ctx context.Context) bool {
	return a.gate.EnsureSessionReady(ctx)
}

func (a *Auth) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	id, err := a.reconciler.Login(ctx, email, password)
	if err == nil {
		a.clearJustLoggedOut(ctx)
	}
	return id, err
}

func (a *Auth) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (domain.Identity, error) {
	id, err := a.reconciler.SignUp(ctx, email, password, opts)
	if err == nil {
		a.clearJustLoggedOut(ctx)
	}
	return id, err
}

// clearJustLoggedOut ends the post-logout window once a new session exists.
func (a *Auth) clearJustLoggedOut(ctx context.Context) {
	if err := a.flags.Clear(ctx, FlagJustLoggedOut); err != nil {
		a.reconciler.logger.Warn("clear just_logged_out", zap.Error(err))
	}
}

// Logout signs out and raises just_logged_out so the next guarded route does
// not redirect on top of the caller's own navigation.
func (a *Auth) Logout(ctx context.Context) error {
	err := a.reconciler.Logout(ctx)
	if flagErr := a.flags.Raise(ctx, FlagJustLoggedOut); flagErr != nil {
		a.reconciler.logger.Warn("raise just_logged_out", zap.Error(flagErr))
	}
	return err
}

// RequestForceLogout arranges for the next guard check to clear the session.
func (a *Auth) RequestForceLogout(ctx context.Context) error {
	return a.flags.Raise(ctx, FlagForceLogout)
}

func (a *Auth) UpdateUser(ctx context.Context, attrs UserAttributes) (domain.Identity, error) {
	return a.reconciler.UpdateUser(ctx, attrs)
}

// Check evaluates a guard rule.
func (a *Auth) Check(ctx context.Context, opts GuardOptions) Decision {
	return a.guard.Check(ctx, opts)
}
