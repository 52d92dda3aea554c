package middleware

import (
	"mime"
	"net/http"
)

// ContentType requires application/json on requests that carry a body.
// Bodyless POSTs such as the toggle endpoints pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength > 0 || (r.ContentLength < 0 && r.Body != nil && r.Body != http.NoBody)
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			if !hasBody {
				break
			}
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				writeError(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is required")
				return
			}
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				writeError(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
