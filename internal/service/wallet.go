package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

// Deposit credits TRY cash to the account and records the audit entry.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	tx, err := s.store.Deposit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Deposit of %s TRY credited to your account.", amount)
	if err := s.store.AppendNotification(ctx, userID, message); err != nil {
		s.logger.Error("append deposit notification failed", "user_id", userID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.DepositsTotal.Inc()
	}
	s.logger.Info("deposit credited", "user_id", userID, "amount", amount)
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]storage.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, limit)
}

func (s *Service) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]storage.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

func (s *Service) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkNotificationsRead(ctx, userID)
}
