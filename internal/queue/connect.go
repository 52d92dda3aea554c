package queue

import (
	"context"
	"fmt"
	"time"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultConnectAttempts bounds Connect when the broker is still starting
	DefaultConnectAttempts = 10

	initialConnectDelay = 2 * time.Second
	maxConnectDelay     = 30 * time.Second
)

// connectDelay doubles from initialConnectDelay and is capped at maxConnectDelay
func connectDelay(attempt int) time.Duration {
	delay := initialConnectDelay << uint(attempt)
	if delay <= 0 || delay > maxConnectDelay {
		return maxConnectDelay
	}
	return delay
}

// Connect dials RabbitMQ, retrying with exponential backoff until it succeeds,
// attempts run out or ctx is cancelled
func Connect(ctx context.Context, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := connectDelay(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}
