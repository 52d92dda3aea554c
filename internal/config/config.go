// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	AuthModeOIDC = "oidc"
	AuthModeNone = "none"
)

// DefaultDevUserID owns every reminder when authentication is disabled
var DefaultDevUserID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// OIDCConfig describes the identity provider
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	JWKSURL      string
	Audience     string
}

// Config holds application configuration
type Config struct {
	StorageBackend      string
	DatabaseURL         string
	ServerPort          string
	BaseURL             string
	FrontendURL         string
	EnableHSTS          bool
	RequestTimeout      time.Duration
	MaxRequestBytes     int64
	RedisURL            string
	RateLimit           string
	RabbitMQURL         string
	RabbitMQPrefetch    int
	DLQRetention        time.Duration
	DLQGCInterval       time.Duration
	AuthMode            string
	DevUserID           uuid.UUID
	OIDC                OIDCConfig
	Timezone            *time.Location
	NotificationChannel string
	LogFormat           string
	WorkerDebugMode     bool
	ServerDebugMode     bool
	OTELEnabled         bool
	OTELEndpoint        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom loads configuration through getenv
func LoadFrom(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}
	cfg := &Config{
		StorageBackend:      strings.ToLower(e.getString("STORAGE_BACKEND", StorageBackendPostgres)),
		DatabaseURL:         e.getString("DATABASE_URL", ""),
		ServerPort:          e.getString("SERVER_PORT", "8080"),
		BaseURL:             e.getString("BASE_URL", "http://localhost:8080"),
		FrontendURL:         e.getString("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:          e.getBool("ENABLE_HSTS", false),
		RequestTimeout:      e.getDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBytes:     int64(e.getInt("MAX_REQUEST_BYTES", 1<<20)),
		RedisURL:            e.getString("REDIS_URL", ""),
		RateLimit:           e.getString("RATE_LIMIT", "20-S"),
		RabbitMQURL:         e.getString("RABBITMQ_URL", ""),
		RabbitMQPrefetch:    e.getInt("RABBITMQ_PREFETCH", 1),
		DLQRetention:        e.getDuration("DLQ_RETENTION", 7*24*time.Hour),
		DLQGCInterval:       e.getDuration("DLQ_GC_INTERVAL", time.Hour),
		AuthMode:            strings.ToLower(e.getString("AUTH_MODE", AuthModeOIDC)),
		NotificationChannel: e.getString("NOTIFICATION_CHANNEL", "reminders:notifications"),
		LogFormat:           strings.ToLower(e.getString("LOG_FORMAT", "json")),
		WorkerDebugMode:     e.getBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:     e.getBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:         e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:        e.getString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OIDC: OIDCConfig{
			Issuer:       e.getString("OIDC_ISSUER", ""),
			ClientID:     e.getString("OIDC_CLIENT_ID", ""),
			ClientSecret: e.getString("OIDC_CLIENT_SECRET", ""),
			RedirectURI:  e.getString("OIDC_REDIRECT_URI", ""),
			JWKSURL:      e.getString("OIDC_JWKS_URL", ""),
			Audience:     e.getString("OIDC_AUDIENCE", ""),
		},
	}

	loc, err := time.LoadLocation(e.getString("TIMEZONE", "UTC"))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Timezone = loc

	devUser := e.getString("DEV_USER_ID", "")
	cfg.DevUserID = DefaultDevUserID
	if devUser != "" {
		id, err := uuid.Parse(devUser)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("DEV_USER_ID: %w", err))
		}
		cfg.DevUserID = id
	}

	if err := errors.Join(append(e.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the server configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s storage backend", StorageBackendPostgres))
		}
	case StorageBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %s or %s, got %q", StorageBackendPostgres, StorageBackendMemory, c.StorageBackend))
	}

	switch c.AuthMode {
	case AuthModeOIDC:
		if c.OIDC.Issuer == "" || c.OIDC.JWKSURL == "" {
			errs = append(errs, errors.New("OIDC_ISSUER and OIDC_JWKS_URL are required when AUTH_MODE=oidc"))
		}
	case AuthModeNone:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %s or %s, got %q", AuthModeOIDC, AuthModeNone, c.AuthMode))
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT: %w", err))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, errors.New("RABBITMQ_PREFETCH must be at least 1"))
	}

	return errors.Join(errs...)
}

// ValidateWorker checks the extra settings the notification worker needs
func (c *Config) ValidateWorker() error {
	var errs []error
	if c.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required for the notification worker"))
	}
	if c.StorageBackend != StorageBackendPostgres {
		errs = append(errs, errors.New("the notification worker needs the postgres storage backend"))
	}
	return errors.Join(errs...)
}

// LogLevel returns the zap level name for the given debug flag
func LogLevel(debug bool) string {
	if debug {
		return "debug"
	}
	return "info"
}

// env reads variables and collects parse errors
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) getString(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) getBool(key string, defaultValue bool) bool {
	value := e.getString(key, "")
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
	return defaultValue
}

func (e *env) getInt(key string, defaultValue int) int {
	value := e.getString(key, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return n
}

func (e *env) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := e.getString(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}
