package router

import (
	"net/http"

	_ "go-auth-api/docs"
	"go-auth-api/handler"
	"go-auth-api/service"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, userHandler *handler.UserHandler, codec *service.TokenCodec, metrics *service.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.Handle("POST /register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("POST /login", handler.ErrorHandlingMiddleware(authHandler.Login))

	logout := handler.ErrorHandlingMiddleware(authHandler.Logout)
	mux.Handle("GET /logout", logout)
	mux.Handle("POST /logout", logout)

	refresh := handler.ErrorHandlingMiddleware(authHandler.Refresh)
	for _, path := range []string{"/refresh", "/refreshToken"} {
		mux.Handle("GET "+path, refresh)
		mux.Handle("POST "+path, refresh)
	}

	auth := handler.AuthMiddleware(codec)
	mux.Handle("GET /api/me", auth(handler.ErrorHandlingMiddleware(userHandler.Me)))

	admin := func(h http.Handler) http.Handler { return auth(handler.AdminMiddleware(h)) }
	mux.Handle("GET /api/admin/users", admin(handler.ErrorHandlingMiddleware(userHandler.ListUsers)))
	mux.Handle("PATCH /api/admin/users/{id}/role", admin(handler.ErrorHandlingMiddleware(userHandler.UpdateRole)))

	return handler.RequestID(handler.RequestLogger(metrics)(mux))
}
