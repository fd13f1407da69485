package service

import (
	"sync"

	"go-auth-api/logger"

	"golang.org/x/crypto/bcrypt"
)

// AuthService hashes and checks account passwords.
type AuthService struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService returns a credential verifier using the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewAuthService(cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{cost: cost}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash reports whether password matches hash. An empty hash
// (unknown account) is still compared against a throwaway hash so both
// failure paths cost the same.
func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
		})
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
