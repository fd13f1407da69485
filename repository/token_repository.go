// file: repository/token_repository.go

package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/sirupsen/logrus"
)

// ITokenRepository is the refresh token store. It is the authority on
// whether a refresh token is still live; a token's own expiry is advisory.
//
// Find methods return (nil, nil) when no live record matches.
type ITokenRepository interface {
	Insert(ctx context.Context, userID int, token string, expiresAt time.Time) error
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	FindByUserAndToken(ctx context.Context, userID int, token string) (*model.RefreshToken, error)
	// DeleteByToken is idempotent and reports whether a record was removed.
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID int) (int64, error)
	// Rotate atomically removes oldToken (owned by userID) and stores
	// newToken. It returns false, storing nothing, when oldToken was no
	// longer live.
	Rotate(ctx context.Context, userID int, oldToken, newToken string, expiresAt time.Time) (bool, error)
}

// HashToken returns the hex SHA-256 of a token. Stores key on the hash so a
// leaked table or keyspace does not hand out usable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenRepository implements ITokenRepository on Postgres.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

const insertTokenQuery = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`

// Insert records a new live refresh token for the user.
func (r *TokenRepository) Insert(ctx context.Context, userID int, token string, expiresAt time.Time) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"expires_at": expiresAt,
	})
	log.Debug("Executing query to create a new refresh token")

	if _, err := r.DB.ExecContext(ctx, insertTokenQuery, userID, HashToken(token), expiresAt); err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// FindByToken looks a token up regardless of owner.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1`
	return r.findOne(ctx, token, query, HashToken(token))
}

// FindByUserAndToken looks a token up scoped to its owner.
func (r *TokenRepository) FindByUserAndToken(ctx context.Context, userID int, token string) (*model.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2`
	return r.findOne(ctx, token, query, HashToken(token), userID)
}

func (r *TokenRepository) findOne(ctx context.Context, token, query string, args ...interface{}) (*model.RefreshToken, error) {
	rt := &model.RefreshToken{Token: token}
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Log.WithError(err).Error("Failed to execute get refresh token query")
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return rt, nil
}

// DeleteByToken removes a single token. Removing an unknown token is not an error.
func (r *TokenRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, HashToken(token))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute delete refresh token query")
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return n > 0, nil
}

// DeleteAllForUser deletes all refresh tokens for a specific user.
func (r *TokenRepository) DeleteAllForUser(ctx context.Context, userID int) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to delete all refresh tokens for a user")

	res, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete refresh tokens query")
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return n, nil
}

// Rotate swaps oldToken for newToken inside one transaction. Under
// concurrent rotation of the same token the row lock on the DELETE lets
// exactly one transaction observe an affected row.
func (r *TokenRepository) Rotate(ctx context.Context, userID int, oldToken, newToken string, expiresAt time.Time) (bool, error) {
	log := logger.Log.WithField("user_id", userID)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2`, HashToken(oldToken), userID)
	if err != nil {
		log.WithError(err).Error("Failed to delete rotated refresh token")
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, insertTokenQuery, userID, HashToken(newToken), expiresAt); err != nil {
		log.WithError(err).Error("Failed to insert rotated refresh token")
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("could not commit transaction: %w", err)
	}
	return true, nil
}
