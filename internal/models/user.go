package models

import (
	"github.com/google/uuid"
)

// userNamespace scopes deterministic user ids derived from identity provider subjects
var userNamespace = uuid.MustParse("6f1c2a0e-3b7d-4c55-9a51-2f0d6b8e4c11")

// User is the authenticated caller. Reminders are owned by User.ID.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email,omitempty"`
	ProviderID string    `json:"provider_id,omitempty"`
	Name       string    `json:"name,omitempty"`
}

// UserFromClaims builds a User from verified token claims. The id is stable
// for a given issuer and subject so no user table is required.
func UserFromClaims(claims *JWTClaims) *User {
	return &User{
		ID:         uuid.NewSHA1(userNamespace, []byte(claims.Iss+"|"+claims.Sub)),
		Email:      claims.Email,
		ProviderID: claims.Sub,
		Name:       claims.Name,
	}
}
