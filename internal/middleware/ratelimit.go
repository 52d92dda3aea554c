package middleware

import (
	"fmt"
	"net/http"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitPrefix = "reminders_limiter"

// NewRateLimitStore returns a Redis-backed store shared by all server
// instances, or a process-local store when client is nil
func NewRateLimitStore(client redis.UniversalClient) (limiter.Store, error) {
	if client == nil {
		return memorystore.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix}), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, nil
}

// rateLimitKey keys authenticated callers by user and others by client IP
func rateLimitKey(r *http.Request) string {
	if id, ok := request.UserID(r); ok {
		return "user:" + id.String()
	}
	return "ip:" + request.ClientIP(r)
}

// RateLimit limits requests per caller at rate (ulule format such as
// "20-S"). Store failures let the request through.
func RateLimit(store limiter.Store, rate string, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	instance := limiter.New(store, parsed)

	return func(next http.Handler) http.Handler {
		limited := stdlibmw.NewMiddleware(instance,
			stdlibmw.WithKeyGetter(rateLimitKey),
			stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry later")
			}),
			stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				logger.Warn("rate_limit_store_error",
					zap.String("error", logpkg.SanitizeError(err)),
					zap.String("request_id", request.RequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
			}),
		).Handler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}, nil
}
