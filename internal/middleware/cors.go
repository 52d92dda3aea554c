package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// AllowedOrigins splits a comma-separated origin list, dropping blanks and
// duplicates. An empty list allows http://localhost:3000.
func AllowedOrigins(list string) []string {
	seen := map[string]bool{}
	var origins []string
	for _, origin := range strings.Split(list, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

// CORS handles preflight requests and CORS headers for the frontend origins
func CORS(frontendURL string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   AllowedOrigins(frontendURL),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
