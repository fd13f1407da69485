// file: model/token.go

package model

import "time"

// RefreshToken is a live refresh-token record. Only the hash of the token
// is persisted; Token is populated when the caller already holds the value.
type RefreshToken struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Token     string    `json:"-"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
