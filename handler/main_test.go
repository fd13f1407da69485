package handler_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	cookieName = "jwt"
	refreshTTL = 24 * time.Hour
)

func TestMain(m *testing.M) {
	logger.Init("error", "text")
	os.Exit(m.Run())
}

// memUserRepo is an in-memory account directory.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[int]model.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int]model.User{}, nextID: 1}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *memUserRepo) GetUserByID(_ context.Context, id int) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r *memUserRepo) GetAllUsers(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		found := u
		out = append(out, &found)
	}
	return out, nil
}

func (r *memUserRepo) UpdateUserRole(_ context.Context, userID int, newRole string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = model.Role(newRole)
	r.users[userID] = u
	return nil
}

type testServer struct {
	router http.Handler
	users  *memUserRepo
	tokens *repository.RedisTokenRepository
	codec  *service.TokenCodec
	auth   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	codec, err := service.NewTokenCodec("access-secret", "refresh-secret", "test")
	require.NoError(t, err)

	users := newMemUserRepo()
	tokens := repository.NewRedisTokenRepository(client, "test")
	auth := service.NewAuthService(bcrypt.MinCost)
	metrics := service.NewMetrics()

	userService := service.NewUserService(users, auth)
	sessions := service.NewSessionService(users, tokens, codec, auth, service.SessionConfig{
		AccessTTL:  10 * time.Second,
		RefreshTTL: refreshTTL,
	}, metrics)

	authHandler := handler.NewAuthHandler(sessions, userService, handler.CookieConfig{
		Name:   cookieName,
		Path:   "/",
		MaxAge: refreshTTL,
	})

	return &testServer{
		router: router.NewRouter(authHandler, handler.NewUserHandler(userService), codec, metrics),
		users:  users,
		tokens: tokens,
		codec:  codec,
		auth:   auth,
	}
}

func (s *testServer) seedUser(t *testing.T, username string, role model.Role) model.User {
	t.Helper()
	hash, err := s.auth.HashPassword("password123")
	require.NoError(t, err)
	user := &model.User{Username: username, Email: username + "@example.com", Password: hash, Role: role}
	require.NoError(t, s.users.CreateUser(context.Background(), user))
	return *user
}

func (s *testServer) do(method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func withCookie(value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: value})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// refreshCookie returns the last refresh cookie set on the response.
func refreshCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	var last *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName {
			last = c
		}
	}
	return last
}
