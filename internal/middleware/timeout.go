package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout is the default request timeout
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Request Timeout","message":"The request took too long to complete"}`

// Timeout cancels the request context and answers 503 with the error
// envelope when the handler runs past timeout
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		limited := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Replaced by the handler's own headers when it finishes in time
			w.Header().Set("Content-Type", "application/json")
			limited.ServeHTTP(w, r)
		})
	}
}
