package handlers

import (
	"net/http"

	"github.com/benvon/smart-reminders/internal/auth"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/gorilla/mux"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	client *auth.Client
}

// NewAuthHandler creates a new auth handler. A nil client disables the
// login endpoint.
func NewAuthHandler(client *auth.Client) *AuthHandler {
	return &AuthHandler{client: client}
}

// LoginConfig tells the frontend where to send the user
type LoginConfig struct {
	AuthorizationURL string `json:"authorization_url"`
	TokenURL         string `json:"token_url"`
	State            string `json:"state"`
}

// RegisterPublicRoutes registers routes that need no token. The router
// should already have the /api/v1/auth prefix.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods(http.MethodGet)
}

// RegisterRoutes registers routes that require an authenticated user
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "OIDC login is not configured")
		return
	}

	state, err := auth.NewState()
	if err != nil {
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to start login")
		return
	}

	respondJSON(w, http.StatusOK, LoginConfig{
		AuthorizationURL: h.client.AuthCodeURL(state),
		TokenURL:         h.client.TokenURL(),
		State:            state,
	})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, r, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
