package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-reminders/internal/auth"
	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/middleware"
	"github.com/benvon/smart-reminders/internal/notifications"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/reminders"
	"github.com/benvon/smart-reminders/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{
		Development: cfg.LogFormat == "console",
		Level:       config.LogLevel(debugMode),
		Service:     serviceName,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("auth_mode", cfg.AuthMode),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTELEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTELEndpoint,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	var checks []handlers.Check

	// Storage
	var store database.ReminderStore
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		zapLogger.Warn("using_in_memory_storage_reminders_are_not_persisted")
		store = database.NewMemoryReminderRepository()
	default:
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_database")
		store = database.NewReminderRepository(db)
	}
	checks = append(checks, handlers.Check{Name: "storage", Ping: store.Ping})

	// Redis backs the shared rate limit store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("invalid_redis_url", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
		checks = append(checks, handlers.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	var limitStore limiter.Store
	if redisClient != nil {
		limitStore, err = middleware.NewRateLimitStore(redisClient)
	} else {
		zapLogger.Warn("redis_not_configured_rate_limits_are_per_instance")
		limitStore, err = middleware.NewRateLimitStore(nil)
	}
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}

	// RabbitMQ carries scheduling jobs to the notification worker
	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.RabbitMQURL != "" {
		jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		notifier = notifications.NewQueueNotifier(jobQueue)
		checks = append(checks, handlers.Check{Name: "queue", Ping: jobQueue.HealthCheck})
	} else {
		zapLogger.Warn("rabbitmq_not_configured_notifications_disabled")
	}

	deps := routerDeps{
		cfg:        cfg,
		logger:     zapLogger,
		service:    reminders.NewService(store, notifier, zapLogger),
		limitStore: limitStore,
		health:     handlers.NewHealthChecker(checks...),
	}
	if cfg.AuthMode == config.AuthModeOIDC {
		keys := auth.NewJWKSCache(cfg.OIDC.JWKSURL, auth.DefaultJWKSTTL, &http.Client{Timeout: 10 * time.Second})
		deps.verifier = auth.NewVerifier(keys, cfg.OIDC.Issuer, cfg.OIDC.Audience)
		if cfg.OIDC.ClientID != "" {
			deps.oidcClient = auth.NewClient(auth.ClientConfig{
				Issuer:       cfg.OIDC.Issuer,
				ClientID:     cfg.OIDC.ClientID,
				ClientSecret: cfg.OIDC.ClientSecret,
				RedirectURI:  cfg.OIDC.RedirectURI,
			})
		}
	} else {
		zapLogger.Warn("authentication_disabled", zap.String("dev_user_id", cfg.DevUserID.String()))
	}

	router, err := newRouter(deps)
	if err != nil {
		zapLogger.Fatal("failed_to_build_router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	zapLogger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}
