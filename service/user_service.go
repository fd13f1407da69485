package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
)

// PasswordHasher turns a plain password into a storable hash.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// UserService handles account registration and the admin role surface.
type UserService struct {
	userRepo repository.IUserRepository
	hasher   PasswordHasher
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository, hasher PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// Register creates a USER account. Username and email must both be unused.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if err := s.ensureUnused(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     model.RoleUser,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("could not create user: %w", err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *UserService) ensureUnused(ctx context.Context, username, email string) error {
	if _, err := s.userRepo.GetUserByUsername(ctx, username); err == nil {
		return ErrDuplicateAccount
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("could not check username: %w", err)
	}

	if _, err := s.userRepo.GetUserByEmail(ctx, email); err == nil {
		return ErrDuplicateAccount
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("could not check email: %w", err)
	}
	return nil
}

// ListUsers returns every account without password hashes.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list users: %w", err)
	}
	for _, u := range users {
		u.Password = ""
	}
	return users, nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(ctx context.Context, userID int, newRole model.Role) error {
	if newRole != model.RoleAdmin && newRole != model.RoleUser {
		return ErrInvalidRole
	}

	err := s.userRepo.UpdateUserRole(ctx, userID, string(newRole))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
