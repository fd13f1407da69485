package service

import (
	"strings"
	"testing"
	"time"

	"go-auth-api/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("access-secret", "refresh-secret", "test-issuer")
	require.NoError(t, err)
	return codec
}

func testIdentity() model.AppClaims {
	return model.AppClaims{UserID: 42, Username: "alice", Email: "alice@example.com", Role: model.RoleUser}
}

func TestNewTokenCodec_RejectsWeakSecrets(t *testing.T) {
	_, err := NewTokenCodec("", "refresh", "")
	assert.Error(t, err)
	_, err = NewTokenCodec("same", "same", "")
	assert.Error(t, err)
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(testIdentity(), model.PurposeAccess, time.Minute)
	require.NoError(t, err)

	res := codec.Verify(token, model.PurposeAccess)
	require.Equal(t, TokenValid, res.Status, res.Err)
	assert.Equal(t, 42, res.Claims.UserID)
	assert.Equal(t, "alice", res.Claims.Username)
	assert.Equal(t, "alice@example.com", res.Claims.Email)
	assert.Equal(t, model.RoleUser, res.Claims.Role)
	assert.Equal(t, model.PurposeAccess, res.Claims.Purpose)
	assert.Equal(t, "test-issuer", res.Claims.Issuer)
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := newTestCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := codec.Issue(testIdentity(), model.PurposeRefresh, time.Hour)
	require.NoError(t, err)

	codec.now = time.Now
	res := codec.Verify(token, model.PurposeRefresh)
	assert.Equal(t, TokenExpired, res.Status)
	require.NotNil(t, res.Claims)
	assert.Equal(t, 42, res.Claims.UserID)
	assert.ErrorIs(t, res.Err, jwt.ErrTokenExpired)
}

func TestTokenCodec_PurposesUseDistinctSecrets(t *testing.T) {
	codec := newTestCodec(t)

	access, err := codec.Issue(testIdentity(), model.PurposeAccess, time.Minute)
	require.NoError(t, err)
	refresh, err := codec.Issue(testIdentity(), model.PurposeRefresh, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TokenInvalid, codec.Verify(access, model.PurposeRefresh).Status)
	assert.Equal(t, TokenInvalid, codec.Verify(refresh, model.PurposeAccess).Status)
}

func TestTokenCodec_ExpiredWithWrongSecretIsInvalid(t *testing.T) {
	codec := newTestCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	access, err := codec.Issue(testIdentity(), model.PurposeAccess, time.Hour)
	require.NoError(t, err)
	codec.now = time.Now

	assert.Equal(t, TokenInvalid, codec.Verify(access, model.PurposeRefresh).Status)
}

func TestTokenCodec_RejectsGarbageAndTampering(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue(testIdentity(), model.PurposeRefresh, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, model.AppClaims{
		UserID:  1,
		Purpose: model.PurposeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":           "",
		"garbage":         "not.a.jwt",
		"swapped payload": parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2],
		"foreign secret":  forged,
		"missing sig":     parts[0] + "." + parts[1] + ".",
		"alg none":        noneToken(t),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, TokenInvalid, codec.Verify(tok, model.PurposeRefresh).Status)
		})
	}
}

func TestTokenCodec_WrongIssuerIsInvalid(t *testing.T) {
	other, err := NewTokenCodec("access-secret", "refresh-secret", "someone-else")
	require.NoError(t, err)
	token, err := other.Issue(testIdentity(), model.PurposeAccess, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TokenInvalid, newTestCodec(t).Verify(token, model.PurposeAccess).Status)
}

func noneToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, model.AppClaims{
		UserID:  42,
		Purpose: model.PurposeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}
