package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/notifications"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/telemetry"
	"github.com/benvon/smart-reminders/internal/workers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "reminders-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid worker configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{
		Development: cfg.LogFormat == "console",
		Level:       config.LogLevel(debugMode),
		Service:     serviceName,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.String("timezone", cfg.Timezone.String()),
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
	store := database.NewReminderRepository(db)

	publisher, closePublisher := newPublisher(ctx, cfg, zapLogger)
	defer closePublisher()

	jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	scheduler := workers.NewNotificationScheduler(store, publisher, jobQueue, cfg.Timezone, zapLogger)
	if err := scheduler.Resync(ctx); err != nil {
		zapLogger.Fatal("failed_to_resync_notifications", zap.Error(err))
	}
	scheduler.Start()

	sweeper := queue.NewDeadLetterSweeper(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dead_letter_sweeper_stopped_with_error", zap.Error(err))
		}
	}()
	zapLogger.Info("started_dead_letter_sweeper",
		zap.Duration("interval", cfg.DLQGCInterval),
		zap.Duration("retention", cfg.DLQRetention),
	)

	zapLogger.Info("worker_started")
	if err := scheduler.Run(ctx, jobQueue, cfg.RabbitMQPrefetch); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
	}

	zapLogger.Info("worker_shutting_down")
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		zapLogger.Warn("timed_out_waiting_for_running_notifications")
	}
	zapLogger.Info("worker_stopped")
}

// newPublisher publishes to Redis when REDIS_URL is set and otherwise logs
// each notification
func newPublisher(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (notifications.Publisher, func()) {
	if cfg.RedisURL == "" {
		zapLogger.Warn("redis_not_configured_notifications_are_logged_only")
		return notifications.PublisherFunc(func(_ context.Context, n notifications.Notification) error {
			zapLogger.Info("notification",
				zap.String("reminder_id", n.ReminderID.String()),
				zap.String("user_id", n.UserID.String()),
				zap.String("slot_id", n.SlotID),
				zap.String("title", logger.SanitizeString(n.Title, 0)),
			)
			return nil
		}), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	zapLogger.Info("connected_to_redis", zap.String("channel", cfg.NotificationChannel))

	return notifications.NewRedisPublisher(client, cfg.NotificationChannel), func() {
		if err := client.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}
}
