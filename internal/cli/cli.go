// Package cli implements the rentalctl commands. Every command names the
// client route it opens; the route passes through the session guard before
// the command talks to the API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/authclient"
	"github.com/armada-rental/rental-service/internal/session"
)

var (
	// ErrSessionNotReady is returned when the session did not settle in time.
	ErrSessionNotReady = errors.New("session not ready; retry or log in")
	// ErrJustLoggedOut is returned once after logout instead of a login redirect.
	ErrJustLoggedOut = errors.New("signed out")
	// ErrUsage is returned for unknown commands and bad arguments.
	ErrUsage = errors.New("usage")
)

// RedirectError reports a navigation the guard turned away.
type RedirectError struct {
	Route    string
	Redirect string
	Reason   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: %s (redirected to %s)", e.Route, e.Reason, e.Redirect)
}

// API is the authenticated backend transport.
type API interface {
	Call(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Env bundles what commands need.
type Env struct {
	Auth   *session.Auth
	API    API
	Policy *session.Policy
	Out    io.Writer
	In     io.Reader
	Logger *zap.Logger
	// ReadyTimeout bounds the wait for the session before each guarded command.
	ReadyTimeout time.Duration
}

type commandFn func(ctx context.Context, env *Env, args []string) error

type command struct {
	name        string
	description string
	// route is checked against the policy before run; empty means unguarded.
	route string
	run   commandFn
}

func commands() map[string]command {
	list := []command{
		{name: "login", description: "Sign in with email and password", route: "/login", run: runLogin},
		{name: "signup", description: "Create an account", route: "/signup", run: runSignUp},
		{name: "logout", description: "Sign out and forget the local session", run: runLogout},
		{name: "whoami", description: "Show the current session state", run: runWhoAmI},
		{name: "force-logout", description: "Clear the session on the next guarded command", run: runForceLogout},
		{name: "profile", description: "Update name, email, phone or password", route: "/profile", run: runProfile},
		{name: "bookings", description: "List, show, create, cancel or delete bookings", route: "/bookings", run: runBookings},
		{name: "geocode", description: "Look up an address", route: "/geo", run: runGeocode},
		{name: "route", description: "Driving distance and time between two points", route: "/geo", run: runRoute},
		{name: "message", description: "Send a WhatsApp/SMS message to a customer", route: "/staff/messages", run: runMessage},
		{name: "dispatch", description: "Push a custom event to the configured webhooks", route: "/staff/webhooks", run: runDispatch},
		{name: "assign-role", description: "Change a user's role", route: "/admin/users", run: runAssignRole},
	}
	out := make(map[string]command, len(list))
	for _, c := range list {
		out[c.name] = c
	}
	return out
}

// Run executes the command named by args[0].
func Run(ctx context.Context, env *Env, args []string) error {
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return printUsage(env.Out)
	}
	cmd, ok := commands()[args[0]]
	if !ok {
		_ = printUsage(env.Out)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	if cmd.route != "" {
		if err := enter(ctx, env, cmd.route); err != nil {
			return err
		}
	}
	err := cmd.run(ctx, env, args[1:])
	if authclient.IsStatus(err, http.StatusUnauthorized) && env.Auth.Snapshot().IsAuthenticated {
		// The API no longer accepts our token; drop the session on the next command.
		if flagErr := env.Auth.RequestForceLogout(ctx); flagErr != nil {
			env.Logger.Warn("request force logout", zap.Error(flagErr))
		}
	}
	return err
}

// enter waits for the session and asks the guard whether route may open.
func enter(ctx context.Context, env *Env, route string) error {
	env.Auth.WaitForSessionReady(ctx, env.ReadyTimeout)
	decision := env.Auth.Guard().CheckRoute(ctx, env.Policy, route)
	switch decision.Outcome {
	case session.OutcomeAllow:
		return nil
	case session.OutcomeSuppressed:
		return ErrJustLoggedOut
	case session.OutcomeRedirect:
		return &RedirectError{Route: route, Redirect: decision.Redirect, Reason: decision.Reason}
	default:
		return ErrSessionNotReady
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: rentalctl <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-14s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

type envelope[T any] struct {
	Data T `json:"data"`
}
