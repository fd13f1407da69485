// file: service/session_service.go

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CredentialVerifier checks a submitted password against a stored hash.
type CredentialVerifier interface {
	CheckPasswordHash(password, hash string) bool
}

// TokenPair is what a successful login or refresh hands to the transport
// layer: the access token goes in the body, the refresh token in the cookie.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionConfig holds token lifetimes.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Refresh outcomes, used as metric labels and log fields.
const (
	refreshRotated  = "rotated"
	refreshMissing  = "missing"
	refreshStale    = "stale"
	refreshReuse    = "reuse"
	refreshExpired  = "expired"
	refreshInvalid  = "invalid"
	refreshMismatch = "mismatch"
	refreshRace     = "race"
	refreshError    = "error"
)

// SessionService runs login, logout and refresh-token rotation.
//
// Each refresh token is single use. Presenting a correctly signed, unexpired
// refresh token that the store no longer knows is treated as theft: every
// refresh token of that account is revoked.
type SessionService struct {
	users   repository.IUserRepository
	tokens  repository.ITokenRepository
	codec   *TokenCodec
	creds   CredentialVerifier
	cfg     SessionConfig
	metrics *Metrics
	now     func() time.Time
}

func NewSessionService(
	users repository.IUserRepository,
	tokens repository.ITokenRepository,
	codec *TokenCodec,
	creds CredentialVerifier,
	cfg SessionConfig,
	metrics *Metrics,
) *SessionService {
	return &SessionService{
		users:   users,
		tokens:  tokens,
		codec:   codec,
		creds:   creds,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}
}

// Login authenticates by email and password and issues a fresh token pair.
// presented is the refresh token cookie the client sent, or "".
func (s *SessionService) Login(ctx context.Context, req model.LoginRequest, presented string) (*TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.creds.CheckPasswordHash(req.Password, "")
			s.metrics.loginResult("invalid_credentials")
			return nil, ErrUnauthorized
		}
		s.metrics.loginResult("error")
		return nil, fmt.Errorf("could not load user: %w", err)
	}
	if !s.creds.CheckPasswordHash(req.Password, user.Password) {
		s.metrics.loginResult("invalid_credentials")
		return nil, ErrUnauthorized
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "flow": "login"})

	if presented != "" {
		record, err := s.tokens.FindByUserAndToken(ctx, user.ID, presented)
		if err != nil {
			s.metrics.loginResult("error")
			return nil, fmt.Errorf("could not look up presented refresh token: %w", err)
		}
		if record == nil {
			// A cookie we no longer recognise for this account may have
			// been stolen and used already.
			n, err := s.tokens.DeleteAllForUser(ctx, user.ID)
			if err != nil {
				s.metrics.loginResult("error")
				return nil, fmt.Errorf("could not revoke refresh tokens: %w", err)
			}
			s.metrics.revoked("login", n)
			log.WithField("revoked", n).Warn("Attempted refresh token reuse at login")
		} else if _, err := s.tokens.DeleteByToken(ctx, presented); err != nil {
			s.metrics.loginResult("error")
			return nil, fmt.Errorf("could not delete replaced refresh token: %w", err)
		}
	}

	pair, expiresAt, err := s.issuePair(model.ClaimsForUser(user))
	if err != nil {
		s.metrics.loginResult("error")
		return nil, err
	}
	if err := s.tokens.Insert(ctx, user.ID, pair.RefreshToken, expiresAt); err != nil {
		s.metrics.loginResult("error")
		return nil, fmt.Errorf("could not store refresh token: %w", err)
	}

	s.metrics.loginResult("success")
	log.Info("User logged in")
	return pair, nil
}

// Logout forgets the presented refresh token. Unknown or missing tokens are
// not an error.
func (s *SessionService) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}

	record, err := s.tokens.FindByToken(ctx, presented)
	if err != nil {
		return fmt.Errorf("could not look up refresh token: %w", err)
	}
	if record == nil {
		return nil
	}

	if _, err := s.tokens.DeleteByToken(ctx, presented); err != nil {
		return fmt.Errorf("could not delete refresh token: %w", err)
	}
	logger.Log.WithField("user_id", record.UserID).Info("User logged out")
	return nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is consumed whatever the outcome.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	if presented == "" {
		s.metrics.refreshResult(refreshMissing)
		return nil, ErrUnauthorized
	}

	record, err := s.tokens.FindByToken(ctx, presented)
	if err != nil {
		s.metrics.refreshResult(refreshError)
		return nil, fmt.Errorf("could not look up refresh token: %w", err)
	}
	result := s.codec.Verify(presented, model.PurposeRefresh)

	if record == nil {
		if result.Status != TokenValid {
			// Garbage or long-dead token; nothing to protect.
			s.metrics.refreshResult(refreshStale)
			logger.Log.WithField("status", result.Status.String()).Info("Unknown refresh token rejected")
			return nil, ErrForbidden
		}
		return nil, s.revokeAll(ctx, result.Claims.UserID, refreshReuse)
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": record.UserID, "flow": "refresh"})

	if result.Status != TokenValid {
		if _, err := s.tokens.DeleteByToken(ctx, presented); err != nil {
			s.metrics.refreshResult(refreshError)
			return nil, fmt.Errorf("could not delete dead refresh token: %w", err)
		}
		outcome := refreshInvalid
		if result.Status == TokenExpired {
			outcome = refreshExpired
		}
		s.metrics.refreshResult(outcome)
		log.WithField("status", result.Status.String()).Info("Stored refresh token failed verification")
		return nil, ErrForbidden
	}

	if result.Claims.UserID != record.UserID {
		s.metrics.refreshResult(refreshMismatch)
		log.WithField("claims_user_id", result.Claims.UserID).Warn("Refresh token owner mismatch")
		return nil, ErrForbidden
	}

	identity := model.AppClaims{
		UserID:   result.Claims.UserID,
		Username: result.Claims.Username,
		Email:    result.Claims.Email,
		Role:     result.Claims.Role,
	}
	pair, expiresAt, err := s.issuePair(identity)
	if err != nil {
		s.metrics.refreshResult(refreshError)
		return nil, err
	}

	rotated, err := s.tokens.Rotate(ctx, record.UserID, presented, pair.RefreshToken, expiresAt)
	if err != nil {
		s.metrics.refreshResult(refreshError)
		return nil, fmt.Errorf("could not rotate refresh token: %w", err)
	}
	if !rotated {
		// Someone consumed this token between our lookup and the swap.
		// Indistinguishable from replay, so it is handled as one.
		return nil, s.revokeAll(ctx, record.UserID, refreshRace)
	}

	s.metrics.refreshResult(refreshRotated)
	log.Debug("Refresh token rotated")
	return pair, nil
}

// revokeAll deletes every refresh token of userID before reporting
// ErrForbidden, so a retried request cannot slip in ahead of the cleanup.
func (s *SessionService) revokeAll(ctx context.Context, userID int, outcome string) error {
	n, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.metrics.refreshResult(refreshError)
		return fmt.Errorf("could not revoke refresh tokens: %w", err)
	}
	s.metrics.refreshResult(outcome)
	s.metrics.revoked("refresh", n)
	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"revoked": n,
		"reason":  outcome,
	}).Warn("Attempted refresh token reuse, all sessions revoked")
	return ErrForbidden
}

// issuePair signs a new access and refresh token for identity. Each token
// gets its own jti so two pairs issued in the same second never collide.
func (s *SessionService) issuePair(identity model.AppClaims) (*TokenPair, time.Time, error) {
	identity.ID = uuid.NewString()
	access, err := s.codec.Issue(identity, model.PurposeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("could not issue access token: %w", err)
	}

	identity.ID = uuid.NewString()
	refresh, err := s.codec.Issue(identity, model.PurposeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("could not issue refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, s.now().Add(s.cfg.RefreshTTL), nil
}
