package handler

import (
	"errors"
	"net/http"

	"go-auth-api/common"
	"go-auth-api/service"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// serviceError maps service sentinels to status codes. Anything unknown is
// an internal failure and its detail stays in the log.
func serviceError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return common.NewAppError(http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, service.ErrForbidden):
		return common.NewAppError(http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, service.ErrDuplicateAccount):
		return common.NewAppError(http.StatusConflict, "Username or email is already used", err)
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusNotFound, "User not found", err)
	case errors.Is(err, service.ErrInvalidRole):
		return common.NewAppError(http.StatusBadRequest, "Invalid role specified", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
}
