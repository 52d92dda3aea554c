package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-reminders/api"
	"github.com/benvon/smart-reminders/internal/auth"
	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/middleware"
	"github.com/benvon/smart-reminders/internal/services/reminders"
	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const serviceName = "reminders-api"

// routerDeps carries everything the HTTP routes need
type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	service    *reminders.Service
	verifier   middleware.TokenVerifier
	oidcClient *auth.Client
	limitStore limiter.Store
	health     *handlers.HealthChecker
}

// authMiddleware verifies bearer tokens, or attaches the development user
// when authentication is disabled
func (d routerDeps) authMiddleware() mux.MiddlewareFunc {
	if d.cfg.AuthMode == config.AuthModeNone {
		return middleware.DevAuth(d.cfg.DevUserID)
	}
	return middleware.Auth(d.verifier, d.logger)
}

// newRouter builds the router. Middleware registered first runs outermost.
func newRouter(d routerDeps) (*mux.Router, error) {
	rateLimitMW, err := middleware.RateLimit(d.limitStore, d.cfg.RateLimit, d.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	if d.cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.Logging(d.logger))
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.CORS(d.cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(d.cfg.MaxRequestBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(d.cfg.RequestTimeout))

	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler(api.OpenAPI).RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	authHandler := handlers.NewAuthHandler(d.oidcClient)

	// Login is public but still rate limited per client IP
	loginRouter := apiRouter.PathPrefix("/auth").Subrouter()
	loginRouter.Use(rateLimitMW)
	authHandler.RegisterPublicRoutes(loginRouter)

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(d.authMiddleware())
	protected.Use(rateLimitMW)
	authHandler.RegisterRoutes(protected.PathPrefix("/auth").Subrouter())
	handlers.NewReminderHandler(d.service, d.cfg.Timezone, d.logger).
		RegisterRoutes(protected.PathPrefix("/reminders").Subrouter())

	// Preflight requests reach CORS through this route
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r, nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, Version, time.Now().UTC().Format(time.RFC3339))
}
