package session

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
)

const (
	DefaultLoginRoute = "/login"
	DefaultHomeRoute  = "/"
)

// GuardOptions describes the access rule of one route.
type GuardOptions struct {
	RequireAuth  bool
	RedirectPath string
	CheckAdmin   bool
	AllowedRoles []domain.Role
}

// Outcome is the result kind of a guard check.
type Outcome int

const (
	// OutcomePending means the session is still loading; check again later.
	OutcomePending Outcome = iota
	OutcomeAllow
	OutcomeRedirect
	// OutcomeSuppressed means a redirect was due but swallowed by just_logged_out.
	OutcomeSuppressed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Decision is returned by Guard.Check.
type Decision struct {
	Outcome  Outcome
	Redirect string
	Reason   string
}

// Allowed reports whether the route may render.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	reconciler *Reconciler
	flags      *Flags
	home       string
	logger     *zap.Logger
}

// NewGuard builds a guard. home is the default route for under-privileged users.
func NewGuard(r *Reconciler, flags *Flags, home string, logger *zap.Logger) *Guard {
	if home == "" {
		home = DefaultHomeRoute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{reconciler: r, flags: flags, home: home, logger: logger.Named("guard")}
}

// Check evaluates opts against the current state.
func (g *Guard) Check(ctx context.Context, opts GuardOptions) Decision {
	forced, err := g.flags.Consume(ctx, FlagForceLogout)
	if err != nil {
		g.logger.Warn("read force_logout flag", zap.Error(err))
	}
	if forced {
		g.logger.Info("forced logout requested")
		g.reconciler.ForceLogout(ctx)
	}

	st := g.reconciler.State()
	if st.IsLoading || !st.IsHydrated {
		return Decision{Outcome: OutcomePending}
	}

	if st.IsAuthenticated {
		// A session exists again, so any earlier logout is no longer "just now".
		if err := g.flags.Clear(ctx, FlagJustLoggedOut); err != nil {
			g.logger.Warn("clear just_logged_out flag", zap.Error(err))
		}
	}

	needsAuth := opts.RequireAuth || opts.CheckAdmin || len(opts.AllowedRoles) > 0
	if needsAuth && !st.IsAuthenticated {
		justLoggedOut, err := g.flags.Consume(ctx, FlagJustLoggedOut)
		if err != nil {
			g.logger.Warn("read just_logged_out flag", zap.Error(err))
		}
		if justLoggedOut {
			return Decision{Outcome: OutcomeSuppressed, Reason: "just logged out"}
		}
		redirect := opts.RedirectPath
		if redirect == "" {
			redirect = DefaultLoginRoute
		}
		return Decision{Outcome: OutcomeRedirect, Redirect: redirect, Reason: "authentication required"}
	}

	role := st.Role()
	if opts.CheckAdmin && role != domain.RoleAdmin {
		return Decision{Outcome: OutcomeRedirect, Redirect: g.home, Reason: "admin role required"}
	}
	if len(opts.AllowedRoles) > 0 && !slices.Contains(opts.AllowedRoles, role) {
		return Decision{Outcome: OutcomeRedirect, Redirect: g.home, Reason: "role not permitted"}
	}
	return Decision{Outcome: OutcomeAllow}
}

// CheckRoute looks path up in policy and evaluates it. Unlisted routes are public.
func (g *Guard) CheckRoute(ctx context.Context, policy *Policy, path string) Decision {
	opts, _ := policy.Lookup(path)
	return g.Check(ctx, opts)
}
