package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FrknKoseoglu/phintech-core/internal/security"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

// Register creates an account with the configured opening cash balance.
func (s *Service) Register(ctx context.Context, email, password string) (*storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}

	hash, err := security.HashPassword(password, security.DefaultParams())
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, email, hash, s.openingBalance)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendNotification(ctx, user.ID, "Welcome! Your account is funded and ready to trade."); err != nil {
		s.logger.Error("append welcome notification failed", "user_id", user.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials. Lookup misses and bad passwords collapse
// into the same error so the endpoint does not leak which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
