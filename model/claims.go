package model

import "github.com/golang-jwt/jwt/v5"

// TokenPurpose separates access tokens from refresh tokens. Each purpose is
// signed with its own secret.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
)

type AppClaims struct {
	UserID   int          `json:"user_id"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Role     Role         `json:"role"`
	Purpose  TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// ClaimsForUser builds the identity part of a claims payload.
func ClaimsForUser(u *User) AppClaims {
	return AppClaims{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
