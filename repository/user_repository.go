package repository

import (
	"context"
	"database/sql"
	"errors"

	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// IUserRepository defines the account directory used by the auth flows.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]*model.User, error)
	UpdateUserRole(ctx context.Context, userID int, newRole string) error
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser inserts the user and fills ID, Role and CreatedAt. A username
// or email collision yields ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, user *model.User) error {
	log := logger.Log.WithFields(logrus.Fields{
		"username": user.Username,
		"email":    user.Email,
	})
	log.Info("Executing query to create a new user")

	if user.Role == "" {
		user.Role = model.RoleUser
	}
	query := `INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query, user.Username, user.Email, user.Password, string(user.Role)).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			log.Info("User already exists")
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to execute create user query")
		return err
	}
	return nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, username, email, password, role, created_at FROM users WHERE email = $1`
	return r.getOne(ctx, logger.Log.WithField("email", email), query, email)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT id, username, email, password, role, created_at FROM users WHERE username = $1`
	return r.getOne(ctx, logger.Log.WithField("username", username), query, username)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	query := `SELECT id, username, email, password, role, created_at FROM users WHERE id = $1`
	return r.getOne(ctx, logger.Log.WithField("user_id", id), query, id)
}

// getOne returns sql.ErrNoRows untouched so callers can tell "absent" from failure.
func (r *UserRepository) getOne(ctx context.Context, log *logrus.Entry, query string, arg interface{}) (*model.User, error) {
	user := &model.User{}
	var role string
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &role, &user.CreatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.WithError(err).Error("Failed to execute get user query")
		}
		return nil, err
	}
	user.Role = model.Role(role)
	return user, nil
}

// GetAllUsers lists every account. For admin use only.
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	log := logger.Log
	log.Info("Executing query to get all users")

	query := `SELECT id, username, email, role, created_at FROM users ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all users")
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role, &u.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan user row")
			return nil, err
		}
		u.Role = model.Role(role)
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdateUserRole sets the role of a user. sql.ErrNoRows means no such user.
func (r *UserRepository) UpdateUserRole(ctx context.Context, userID int, newRole string) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":  userID,
		"new_role": newRole,
	})
	log.Info("Executing query to update user role")

	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, newRole, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute update user role query")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
