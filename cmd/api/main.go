package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/armada-rental/rental-service/internal/api/http"
	"github.com/armada-rental/rental-service/internal/api/http/handlers"
	"github.com/armada-rental/rental-service/internal/auth"
	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/events"
	"github.com/armada-rental/rental-service/internal/observability"
	"github.com/armada-rental/rental-service/internal/persistence"
	"github.com/armada-rental/rental-service/internal/repository"
	"github.com/armada-rental/rental-service/internal/service"
	"github.com/armada-rental/rental-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.Pool
	userRepo := repository.NewUserRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	revocations := auth.NewRedisRevocationList(redis.Client)
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:    userRepo,
		Revocations: revocations,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	bookingService := service.NewBookingService(service.BookingDependencies{
		BookingRepo: bookingRepo,
		Dispatcher:  dispatcher,
		Tariff:      cfg.Booking,
		Logger:      logger,
	})
	roleService := service.NewRoleService(userRepo, dispatcher, logger)
	geoCache := redis.KV("geo:", cfg.Maps.CacheTTL)
	geoService := service.NewGeoService(cfg.Maps, geoCache, logger)
	messagingService := service.NewMessagingService(cfg.Messaging, logger)

	webhookPool := worker.NewWebhookPool(worker.NewWebhookSender(cfg.Webhook, logger), cfg.Webhook.Workers, cfg.Webhook.QueueSize, logger)
	notificationService := service.NewNotificationService(dispatcher, webhookPool, cfg.Webhook.URLs, logger)
	workerDone := worker.StartNotificationWorker(ctx, notificationService, webhookPool)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, revocations, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: redis},
		),
		Auth:           handlers.NewAuthHandler(authService),
		Bookings:       handlers.NewBookingsHandler(bookingService),
		Admin:          handlers.NewAdminHandler(roleService),
		Webhooks:       handlers.NewWebhooksHandler(notificationService),
		Geo:            handlers.NewGeoHandler(geoService),
		Messages:       handlers.NewMessagesHandler(messagingService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	cancel()
	if err := <-workerDone; err != nil {
		logger.Warn("notification worker stopped", zap.Error(err))
	}
	stats := webhookPool.Stats()
	logger.Info("webhook deliveries",
		zap.Uint64("delivered", stats.Delivered),
		zap.Uint64("failed", stats.Failed),
		zap.Uint64("dropped", stats.Dropped))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
