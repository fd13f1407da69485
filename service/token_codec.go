// file: service/token_codec.go

package service

import (
	"errors"
	"fmt"
	"time"

	"go-auth-api/model"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyStatus is the outcome of TokenCodec.Verify.
type VerifyStatus int

const (
	TokenInvalid VerifyStatus = iota
	TokenValid
	TokenExpired
)

func (s VerifyStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// VerifyResult carries the claims when Status is TokenValid. For expired
// tokens the claims are also populated since their signature did check out.
type VerifyResult struct {
	Status VerifyStatus
	Claims *model.AppClaims
	Err    error
}

// TokenCodec signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets so a leaked access secret cannot mint refresh tokens.
type TokenCodec struct {
	secrets map[model.TokenPurpose][]byte
	issuer  string
	now     func() time.Time
}

// NewTokenCodec builds a codec from immutable secrets.
func NewTokenCodec(accessSecret, refreshSecret, issuer string) (*TokenCodec, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &TokenCodec{
		secrets: map[model.TokenPurpose][]byte{
			model.PurposeAccess:  []byte(accessSecret),
			model.PurposeRefresh: []byte(refreshSecret),
		},
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue stamps purpose, issuer, iat and exp onto claims and signs them.
func (c *TokenCodec) Issue(claims model.AppClaims, purpose model.TokenPurpose, ttl time.Duration) (string, error) {
	secret, ok := c.secrets[purpose]
	if !ok {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := c.now()
	claims.Purpose = purpose
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose.
func (c *TokenCodec) Verify(tokenString string, purpose model.TokenPurpose) VerifyResult {
	secret, ok := c.secrets[purpose]
	if !ok {
		return VerifyResult{Status: TokenInvalid, Err: fmt.Errorf("unknown token purpose %q", purpose)}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &model.AppClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})

	switch {
	case err == nil && token.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		// Claims validation only runs after the signature verified.
		return VerifyResult{Status: TokenExpired, Claims: claims, Err: err}
	case err == nil:
		return VerifyResult{Status: TokenInvalid, Err: jwt.ErrTokenInvalidClaims}
	default:
		return VerifyResult{Status: TokenInvalid, Err: err}
	}

	if claims.Purpose != purpose {
		return VerifyResult{Status: TokenInvalid, Err: fmt.Errorf("token purpose %q, want %q", claims.Purpose, purpose)}
	}
	return VerifyResult{Status: TokenValid, Claims: claims}
}
