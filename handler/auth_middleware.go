package handler

import (
	"context"
	"net/http"
	"strings"

	"go-auth-api/common"
	"go-auth-api/model"
	"go-auth-api/service"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
	UsernameKey contextKey = "username"
	EmailKey    contextKey = "email"
)

// AuthMiddleware admits requests carrying a valid access token in the
// Authorization header and stores the caller's identity in the context.
func AuthMiddleware(codec *service.TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil).Send(w)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil).Send(w)
				return
			}

			result := codec.Verify(headerParts[1], model.PurposeAccess)
			if result.Status != service.TokenValid {
				common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", result.Err).Send(w)
				return
			}

			claims := result.Claims
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleKey).(model.Role)

		if !ok || role != model.RoleAdmin {
			common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil).Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
