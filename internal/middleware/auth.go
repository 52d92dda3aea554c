package middleware

import (
	"context"
	"net/http"
	"strings"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Auth rejects requests without a valid bearer token and attaches the
// caller to the request context
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header")
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format")
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Info("token_verification_failed",
					zap.String("error", logpkg.SanitizeError(err)),
					zap.String("request_id", request.RequestID(r.Context())),
				)
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}

			user := models.UserFromClaims(claims)
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

// DevAuth attaches a fixed user to every request. Used when authentication
// is disabled.
func DevAuth(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := &models.User{ID: userID, Name: "Developer", ProviderID: "dev"}
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}
