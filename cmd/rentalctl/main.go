package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/armada-rental/rental-service/internal/authclient"
	"github.com/armada-rental/rental-service/internal/cli"
	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
	"github.com/armada-rental/rental-service/internal/observability"
	"github.com/armada-rental/rental-service/internal/persistence"
	"github.com/armada-rental/rental-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewCLILogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, logger)
	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) int {
	store, err := persistence.OpenSQLite(ctx, cfg.Client.StatePath)
	if err != nil {
		logger.Error("open local state", zap.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close local state", zap.Error(err))
		}
	}()
	local := store.Local()

	client, err := authclient.New(authclient.Config{
		BaseURL: cfg.Client.APIURL,
		Timeout: cfg.Client.HTTPTimeout,
		Tokens:  local,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build api client", zap.Error(err))
		return 1
	}

	policy, err := session.LoadPolicy(cfg.Client.PolicyPath)
	if err != nil {
		logger.Error("load route policy", zap.Error(err))
		return 1
	}
	allowed, err := parseRoles(cfg.Client.AllowedRoles)
	if err != nil {
		logger.Error("parse allowed roles", zap.Error(err))
		return 1
	}

	auth := session.New(session.Config{
		Provider:     client,
		Local:        local,
		Flags:        store.Session(cfg.Client.FlagTTL),
		Logger:       logger,
		AllowedRoles: allowed,
		ReadyTimeout: cfg.Client.ReadyTimeout,
		Home:         policy.Home,
	})
	if err := auth.Init(ctx); err != nil {
		logger.Error("init session", zap.Error(err))
		return 1
	}
	defer auth.Teardown()

	err = cli.Run(ctx, &cli.Env{
		Auth:         auth,
		API:          client,
		Policy:       policy,
		Out:          os.Stdout,
		In:           os.Stdin,
		Logger:       logger,
		ReadyTimeout: cfg.Client.ReadyTimeout,
	}, os.Args[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrUsage):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, "rentalctl:", err)
		return 1
	}
}

func parseRoles(raw []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(raw))
	for _, r := range raw {
		role, ok := domain.ParseRole(r)
		if !ok {
			return nil, fmt.Errorf("unknown role %q", r)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
