package models

import "time"

// JWTClaims holds the verified claims of a bearer token
type JWTClaims struct {
	Sub   string   `json:"sub"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Exp   int64    `json:"exp"`
	Iat   int64    `json:"iat"`
	Iss   string   `json:"iss"`
	Aud   []string `json:"aud"`
}

// ExpiresAt returns the expiry as a time. Zero when the token has no exp.
func (c *JWTClaims) ExpiresAt() time.Time {
	if c.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(c.Exp, 0)
}
