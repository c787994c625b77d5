package session

import (
	"context"
	"time"
)

// DefaultReadyTimeout bounds EnsureSessionReady when no timeout is configured.
const DefaultReadyTimeout = 5 * time.Second

// Gate answers whether the session is ready for authenticated work.
type Gate struct {
	reconciler *Reconciler
	timeout    time.Duration
}

// NewGate builds a gate over r. A non-positive timeout uses DefaultReadyTimeout.
func NewGate(r *Reconciler, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &Gate{reconciler: r, timeout: timeout}
}

// SessionReady reports the readiness predicate for the current state.
func (g *Gate) SessionReady() bool {
	return g.reconciler.State().Ready()
}

// WaitForSessionReady returns true as soon as the session is ready. When it is
// not, a re-initialization is requested and the call waits for state changes
// until timeout or ctx expires, then reports whether the state is hydrated.
func (g *Gate) WaitForSessionReady(ctx context.Context, timeout time.Duration) bool {
	st, changed := g.reconciler.watch()
	if st.Ready() {
		return true
	}
	g.reconciler.RequestReinit()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-changed:
			st, changed = g.reconciler.watch()
			if st.Ready() {
				return true
			}
		case <-timer.C:
			return g.reconciler.State().IsHydrated
		case <-ctx.Done():
			return g.reconciler.State().IsHydrated
		}
	}
}

// EnsureSessionReady waits with the configured timeout. A false result means
// the caller should retry or prompt for login.
func (g *Gate) EnsureSessionReady(ctx context.Context) bool {
	return g.WaitForSessionReady(ctx, g.timeout)
}
