package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/session"
)

func newFlagSet(name string, env *Env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Out)
	return fs
}

func runLogin(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("login", env)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (read from stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%w: -email is required", ErrUsage)
	}
	pw, err := passwordOrStdin(*password, env.In)
	if err != nil {
		return err
	}

	id, err := env.Auth.Login(ctx, *email, pw)
	if err != nil {
		var denied *session.RoleDeniedError
		if errors.As(err, &denied) {
			return fmt.Errorf("role %q may not use this client", denied.Role)
		}
		return fmt.Errorf("login: %w", err)
	}
	return writef(env.Out, "signed in as %s\n", describe(id))
}

func runSignUp(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("signup", env)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (read from stdin when omitted)")
	name := fs.String("name", "", "Full name")
	phone := fs.String("phone", "", "Phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return fmt.Errorf("%w: -email and -name are required", ErrUsage)
	}
	pw, err := passwordOrStdin(*password, env.In)
	if err != nil {
		return err
	}

	id, err := env.Auth.SignUp(ctx, *email, pw, session.SignUpOptions{Name: *name, Phone: *phone})
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	if !env.Auth.Snapshot().IsAuthenticated {
		return writef(env.Out, "account created for %s; sign in to continue\n", id.Email)
	}
	return writef(env.Out, "account created; signed in as %s\n", describe(id))
}

func runLogout(ctx context.Context, env *Env, _ []string) error {
	if err := env.Auth.Logout(ctx); err != nil {
		// Local state is already cleared; the remote revoke is best effort.
		env.Logger.Warn("remote sign out failed", zap.Error(err))
	}
	return writef(env.Out, "signed out\n")
}

func runForceLogout(ctx context.Context, env *Env, _ []string) error {
	if err := env.Auth.RequestForceLogout(ctx); err != nil {
		return fmt.Errorf("raise force logout: %w", err)
	}
	return writef(env.Out, "session will be cleared on the next command\n")
}

func runWhoAmI(ctx context.Context, env *Env, _ []string) error {
	env.Auth.WaitForSessionReady(ctx, env.ReadyTimeout)
	enc := json.NewEncoder(env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(env.Auth.Snapshot())
}

func runProfile(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("profile", env)
	name := fs.String("name", "", "New full name")
	email := fs.String("email", "", "New email")
	phone := fs.String("phone", "", "New phone number")
	password := fs.String("password", "", "New password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var attrs session.UserAttributes
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&attrs.Name, *name)
	set(&attrs.Email, *email)
	set(&attrs.Phone, *phone)
	set(&attrs.Password, *password)
	if attrs == (session.UserAttributes{}) {
		return fmt.Errorf("%w: nothing to update", ErrUsage)
	}

	id, err := env.Auth.UpdateUser(ctx, attrs)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return writef(env.Out, "profile updated: %s\n", describe(id))
}

func passwordOrStdin(flagValue string, in io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if in == nil {
		return "", fmt.Errorf("%w: -password is required", ErrUsage)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("%w: password is required", ErrUsage)
	}
	return pw, nil
}

func describe(id domain.Identity) string {
	if id.Name == "" {
		return fmt.Sprintf("%s (%s)", id.Email, id.Role)
	}
	return fmt.Sprintf("%s <%s> (%s)", id.Name, id.Email, id.Role)
}
