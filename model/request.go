// file: model/request.go

package model

// RegisterRequest defines the payload for creating a new account.
type RegisterRequest struct {
	Username             string `json:"username" validate:"required,min=3,max=50"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=6"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required,eqfield=Password"`
}

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UpdateUserRoleRequest defines the payload for updating a user's role.
type UpdateUserRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=ADMIN USER"`
}

// AccessTokenResponse is returned by login and refresh. The refresh token
// itself only travels in the http-only cookie.
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message,omitempty"`
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}
