// Package auth verifies OIDC bearer tokens and builds login URLs.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// DefaultJWKSTTL is how long fetched keys are reused before refetching
const DefaultJWKSTTL = time.Hour

// KeySource supplies the keys tokens are verified against
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
	Invalidate()
}

// JWKSCache fetches a JWKS document and caches it for a fixed TTL
type JWKSCache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

// NewJWKSCache creates a cache for the JWKS at url. A nil client uses a
// client with a 10 second timeout.
func NewJWKSCache(url string, ttl time.Duration, client *http.Client) *JWKSCache {
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &JWKSCache{url: url, ttl: ttl, client: client, now: time.Now}
}

// Keys returns the cached key set, fetching it when missing or expired
func (c *JWKSCache) Keys(ctx context.Context) (jwk.Set, error) {
	c.mu.RLock()
	if c.keys != nil && c.now().Before(c.expires) {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
	return keys, nil
}

// Invalidate drops the cached keys so the next call refetches. Used after a
// key rotation is detected.
func (c *JWKSCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
}

func (c *JWKSCache) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return keys, nil
}

// StaticKeys is a KeySource over a fixed key set
type StaticKeys struct {
	Set jwk.Set
}

// Keys returns the fixed set
func (s StaticKeys) Keys(context.Context) (jwk.Set, error) {
	return s.Set, nil
}

// Invalidate is a no-op
func (StaticKeys) Invalidate() {}

var (
	_ KeySource = (*JWKSCache)(nil)
	_ KeySource = StaticKeys{}
)
