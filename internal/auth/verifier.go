package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks bearer tokens against an issuer's keys
type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
	skew     time.Duration
}

// NewVerifier creates a verifier. An empty audience skips the aud check.
func NewVerifier(keys KeySource, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience, skew: 30 * time.Second}
}

// Verify validates the token signature and standard claims and returns the
// claims the API uses
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.keySetFor(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	token, err := v.parse(tokenString, keys)
	if err != nil {
		return nil, err
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claimsFromToken(token), nil
}

// keySetFor returns the key set, refetching once when the token names a key
// id the cached set does not contain
func (v *Verifier) keySetFor(ctx context.Context, tokenString string) (jwk.Set, error) {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var kid string
	if sigs := msg.Signatures(); len(sigs) > 0 {
		kid = sigs[0].ProtectedHeaders().KeyID()
	}

	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	if kid == "" {
		return keys, nil
	}
	if _, ok := keys.LookupKeyID(kid); ok {
		return keys, nil
	}

	v.keys.Invalidate()
	keys, err = v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	return keys, nil
}

func (v *Verifier) parse(tokenString string, keys jwk.Set) (jwt.Token, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(v.skew),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return token, nil
}

func claimsFromToken(token jwt.Token) *models.JWTClaims {
	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Aud: token.Audience(),
	}
	if exp := token.Expiration(); !exp.IsZero() {
		claims.Exp = exp.Unix()
	}
	if iat := token.IssuedAt(); !iat.IsZero() {
		claims.Iat = iat.Unix()
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")
	return claims
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
