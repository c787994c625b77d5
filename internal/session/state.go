package session

import "github.com/armada-rental/rental-service/internal/domain"

// Phase is the lifecycle position of a session.
type Phase int

const (
	PhaseBooting Phase = iota
	PhaseHydrating
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseBooting:
		return "booting"
	case PhaseHydrating:
		return "hydrating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is the in-memory session state. Values are copies; mutate through the Reconciler.
type State struct {
	IsAuthenticated bool
	IsHydrated      bool
	IsSessionReady  bool
	IsLoading       bool
	Identity        *domain.Identity
}

// Ready is the readiness predicate used by the Gate.
func (s State) Ready() bool {
	if !s.IsHydrated || !s.IsSessionReady || s.IsLoading {
		return false
	}
	return !s.IsAuthenticated || (s.Identity != nil && s.Identity.ID != "")
}

// Phase derives the lifecycle phase.
func (s State) Phase() Phase {
	switch {
	case s.Ready() && s.IsAuthenticated:
		return PhaseAuthenticated
	case s.Ready():
		return PhaseAnonymous
	case s.IsHydrated || s.IsLoading:
		return PhaseHydrating
	default:
		return PhaseBooting
	}
}

// Role returns the identity role, or "" when anonymous.
func (s State) Role() domain.Role {
	if !s.IsAuthenticated || s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

// Snapshot is the flat read-only view handed to callers.
type Snapshot struct {
	IsAuthenticated bool        `json:"is_authenticated"`
	UserID          string      `json:"user_id,omitempty"`
	UserRole        domain.Role `json:"user_role,omitempty"`
	UserEmail       string      `json:"user_email,omitempty"`
	UserName        string      `json:"user_name,omitempty"`
	IsLoading       bool        `json:"is_loading"`
	IsHydrated      bool        `json:"is_hydrated"`
	IsSessionReady  bool        `json:"is_session_ready"`
}

// Snapshot flattens the state. Identity fields are only exposed once hydrated.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		IsAuthenticated: s.IsAuthenticated && s.IsHydrated,
		IsLoading:       s.IsLoading,
		IsHydrated:      s.IsHydrated,
		IsSessionReady:  s.IsSessionReady,
	}
	if snap.IsAuthenticated && s.Identity != nil {
		snap.UserID = s.Identity.ID
		snap.UserRole = s.Identity.Role
		snap.UserEmail = s.Identity.Email
		snap.UserName = s.Identity.Name
	}
	return snap
}

func authenticatedState(id domain.Identity) State {
	return State{IsAuthenticated: true, IsHydrated: true, IsSessionReady: true, Identity: &id}
}

func anonymousState() State {
	return State{IsHydrated: true, IsSessionReady: true}
}
