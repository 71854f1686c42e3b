package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/apnabook-auth/internal/api/http"
	"github.com/spec-kit/apnabook-auth/internal/api/http/handlers"
	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/config"
	"github.com/spec-kit/apnabook-auth/internal/events"
	"github.com/spec-kit/apnabook-auth/internal/mailer"
	"github.com/spec-kit/apnabook-auth/internal/observability"
	"github.com/spec-kit/apnabook-auth/internal/persistence"
	"github.com/spec-kit/apnabook-auth/internal/ratelimit"
	"github.com/spec-kit/apnabook-auth/internal/repository"
	"github.com/spec-kit/apnabook-auth/internal/service"
	"github.com/spec-kit/apnabook-auth/internal/worker"
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

	if !pg.Configured() && cfg.App.Env == "production" {
		logger.Fatal("POSTGRES_DSN is required in production")
	}

	if pg.Configured() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	var (
		userRepo    repository.UserRepository
		pendingRepo repository.PendingSignupRepository
		otpRepo     repository.OTPRepository
		pgPinger    handlers.Pinger
		redisPinger handlers.Pinger
	)
	if pg.Configured() {
		pool := pg.PoolHandle()
		userRepo = repository.NewUserRepository(pool)
		pendingRepo = repository.NewPendingSignupRepository(pool)
		otpRepo = repository.NewOTPRepository(pool)
		pgPinger = pg
	} else {
		logger.Warn("using in-memory credential store; data is lost on restart")
		store := repository.NewMemoryStore()
		userRepo = store.Users()
		pendingRepo = store.PendingSignups()
		otpRepo = store.OTPs()
	}

	notifications := service.NewNotificationService(
		mailer.New(cfg.Notification, logger),
		logger,
		cfg.Notification,
		cfg.Auth.OTPTTL(),
	)
	otpService := service.NewOTPService(cfg.Auth, service.OTPDependencies{
		OTPRepo:    otpRepo,
		Sender:     notifications,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PendingSignupRepo: pendingRepo,
		OTP:               otpService,
		Dispatcher:        dispatcher,
		Logger:            logger,
	})
	userService := service.NewUserService(userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	var limiter ratelimit.Limiter
	if redis.Configured() {
		limiter = ratelimit.NewRedisLimiter(redis.Client, cfg.RateLimit.KeyPrefix, cfg.RateLimit.Window())
		redisPinger = redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pgPinger, redisPinger, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		AdminUsers:     handlers.NewAdminUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		OTPLimiter:     httptransport.OTPRequestLimiter(limiter, cfg.RateLimit.OTPRequestsPerWindow, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
