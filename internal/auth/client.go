package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// ClientConfig describes the OIDC client registration
type ClientConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Client builds authorization URLs and exchanges codes
type Client struct {
	config *oauth2.Config
}

// NewClient creates an OAuth2 client whose endpoints hang off the issuer
func NewClient(cfg ClientConfig) *Client {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	return &Client{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/oauth2/authorize",
			TokenURL: issuer + "/oauth2/token",
		},
	}}
}

// AuthCodeURL returns the authorization URL for state
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// TokenURL returns the token endpoint
func (c *Client) TokenURL() string {
	return c.config.Endpoint.TokenURL
}

// NewState returns a random URL-safe state value
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
