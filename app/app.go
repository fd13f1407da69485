// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go-auth-api/config"
	"go-auth-api/db"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// App is the fully wired service.
type App struct {
	DB      *sql.DB
	Redis   *redis.Client
	Router  http.Handler
	Tokens  repository.ITokenRepository
	Codec   *service.TokenCodec
	Metrics *service.Metrics
}

// New wires every layer. rdb may be nil unless the redis store backend is
// selected.
func New(cfg *config.Config, database *sql.DB, rdb *redis.Client) (*App, error) {
	codec, err := service.NewTokenCodec(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("could not build token codec: %w", err)
	}

	var tokens repository.ITokenRepository
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis store backend selected but no redis client given")
		}
		tokens = repository.NewRedisTokenRepository(rdb, cfg.Redis.KeyPrefix)
	default:
		tokens = repository.NewTokenRepository(database)
	}

	metrics := service.NewMetrics()

	// Layers for User
	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(bcrypt.DefaultCost)
	userService := service.NewUserService(userRepo, authService)

	// Layers for Session
	sessionService := service.NewSessionService(userRepo, tokens, codec, authService, service.SessionConfig{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, metrics)

	authHandler := handler.NewAuthHandler(sessionService, userService, handler.CookieConfig{
		Name:   cfg.Cookie.Name,
		Domain: cfg.Cookie.Domain,
		Path:   cfg.Cookie.Path,
		MaxAge: cfg.JWT.RefreshTTL,
	})
	userHandler := handler.NewUserHandler(userService)

	return &App{
		DB:      database,
		Redis:   rdb,
		Router:  router.NewRouter(authHandler, userHandler, codec, metrics),
		Tokens:  tokens,
		Codec:   codec,
		Metrics: metrics,
	}, nil
}

// Run connects to the backing stores and serves until SIGINT or SIGTERM.
func Run(cfg *config.Config) error {
	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(database); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.Store.Backend == config.StoreBackendRedis {
		rdb, err = db.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	a, err := New(cfg, database, rdb)
	if err != nil {
		return err
	}
	logger.Log.WithField("store_backend", cfg.Store.Backend).Info("Application wired")

	// --- Start the Server with Graceful Shutdown ---
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: a.Router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Infof("Server starting on port :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exited properly")
	return nil
}
