package service

import "errors"

// Terminal outcomes of the auth flows. Handlers map these to status codes;
// every other error from this package is an internal failure.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicateAccount = errors.New("username or email is already used")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidRole      = errors.New("invalid role specified")
)
