package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"go-auth-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceLogin = `{"email":"alice@example.com","password":"password123"}`

func login(t *testing.T, s *testServer, cookie string) (string, *http.Cookie) {
	t.Helper()
	var opts []func(*http.Request)
	if cookie != "" {
		opts = append(opts, withCookie(cookie))
	}
	rr := s.do(http.MethodPost, "/login", aliceLogin, opts...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body model.AccessTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	c := refreshCookie(rr)
	require.NotNil(t, c)
	return body.AccessToken, c
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	t.Run("created", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/register",
			`{"username":"carol","email":"carol@example.com","password":"secret1","passwordConfirmation":"secret1"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.JSONEq(t, `{"message":"carol is created successfully"}`, rr.Body.String())

		user, err := s.users.GetUserByEmail(context.Background(), "carol@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.RoleUser, user.Role)
		assert.True(t, s.auth.CheckPasswordHash("secret1", user.Password))
	})

	t.Run("duplicate", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/register",
			`{"username":"carol","email":"other@example.com","password":"secret1","passwordConfirmation":"secret1"}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("password mismatch", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/register",
			`{"username":"dave","email":"dave@example.com","password":"secret1","passwordConfirmation":"secret2"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Passwords do not match")
	})

	t.Run("wrong method", func(t *testing.T) {
		rr := s.do(http.MethodGet, "/register", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", model.RoleUser)

	t.Run("success sets refresh cookie", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/login", aliceLogin)
		require.Equal(t, http.StatusOK, rr.Code)

		var body model.AccessTokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEmpty(t, body.Message)
		assert.NotContains(t, rr.Body.String(), "refresh")

		c := refreshCookie(rr)
		require.NotNil(t, c)
		assert.NotEmpty(t, c.Value)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, int(refreshTTL.Seconds()), c.MaxAge)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/login", `{"email":"alice@example.com","password":"wrong-password"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, refreshCookie(rr))
	})

	t.Run("unknown email", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/login", `{"email":"nobody@example.com","password":"password123"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/login", `{"email":"not-an-email"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRefresh_RotationAndReplay(t *testing.T) {
	s := newTestServer(t)
	alice := s.seedUser(t, "alice", model.RoleUser)

	_, r1 := login(t, s, "")

	rr := s.do(http.MethodPost, "/refresh", "", withCookie(r1.Value))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body model.AccessTokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)

	r2 := refreshCookie(rr)
	require.NotNil(t, r2)
	assert.NotEqual(t, r1.Value, r2.Value)
	assert.Equal(t, int(refreshTTL.Seconds()), r2.MaxAge)

	// Replaying the consumed token revokes everything.
	rr = s.do(http.MethodPost, "/refresh", "", withCookie(r1.Value))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	cleared := refreshCookie(rr)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	rt, err := s.tokens.FindByToken(context.Background(), r2.Value)
	require.NoError(t, err)
	assert.Nil(t, rt)
	n, err := s.tokens.DeleteAllForUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	rr = s.do(http.MethodPost, "/refresh", "", withCookie(r2.Value))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRefresh_Alias(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", model.RoleUser)
	_, r1 := login(t, s, "")

	rr := s.do(http.MethodGet, "/refreshToken", "", withCookie(r1.Value))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRefresh_NoCookie(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefresh_GarbageCookie(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/refresh", "", withCookie("garbage"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"code":403,"message":"Forbidden"}`, rr.Body.String())
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", model.RoleUser)

	t.Run("no cookie", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/logout", "")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Nil(t, refreshCookie(rr))
	})

	t.Run("unknown cookie", func(t *testing.T) {
		rr := s.do(http.MethodGet, "/logout", "", withCookie("garbage"))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		c := refreshCookie(rr)
		require.NotNil(t, c)
		assert.Negative(t, c.MaxAge)
	})

	t.Run("known cookie", func(t *testing.T) {
		_, c := login(t, s, "")

		rr := s.do(http.MethodPost, "/logout", "", withCookie(c.Value))
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rt, err := s.tokens.FindByToken(context.Background(), c.Value)
		require.NoError(t, err)
		assert.Nil(t, rt)
	})
}

func TestLogin_ReusedCookieRevokesOtherSessions(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", model.RoleUser)

	_, phone := login(t, s, "")
	_, laptop := login(t, s, "")

	rr := s.do(http.MethodPost, "/refresh", "", withCookie(phone.Value))
	require.Equal(t, http.StatusOK, rr.Code)

	// phone's first cookie is already consumed; presenting it at login is reuse.
	_, fresh := login(t, s, phone.Value)

	rt, err := s.tokens.FindByToken(context.Background(), laptop.Value)
	require.NoError(t, err)
	assert.Nil(t, rt)

	rt, err = s.tokens.FindByToken(context.Background(), fresh.Value)
	require.NoError(t, err)
	assert.NotNil(t, rt)
}
