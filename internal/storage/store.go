package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPending      = errors.New("order is not pending")
	ErrNotOrderOwner        = errors.New("order belongs to another user")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// SettleParams describes one atomic settlement. FundingAsset names the
// holding debited/credited for the notional leg; empty means the user's
// cash balance.
type SettleParams struct {
	UserID       uuid.UUID
	Symbol       string
	Side         OrderSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	FundingAsset string
}

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	Status OrderStatus
	Limit  int
}

// Store is the ledger repository. Postgres backs it in production; Memory
// implements the same contract for tests and local demos.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string, openingBalance decimal.Decimal) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*Transaction, error)
	ListHoldings(ctx context.Context, userID uuid.UUID) ([]Holding, error)

	CreateOrder(ctx context.Context, order *LimitOrder) error
	GetOrder(ctx context.Context, id uuid.UUID) (*LimitOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID, filter OrderFilter) ([]LimitOrder, error)
	// ListPendingOrders returns every PENDING order across users, oldest
	// created first.
	ListPendingOrders(ctx context.Context) ([]LimitOrder, error)

	// ClaimOrder moves PENDING to PROCESSING and reports whether this
	// caller won the claim. A false result without error means another
	// sweep already owns or finished the order.
	ClaimOrder(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseOrder undoes a claim, PROCESSING back to PENDING.
	ReleaseOrder(ctx context.Context, id uuid.UUID) error
	CompleteOrder(ctx context.Context, id uuid.UUID) error
	FailOrder(ctx context.Context, id uuid.UUID, reason string) error
	// CancelOrder is the user-facing PENDING -> CANCELLED transition,
	// conditioned on ownership and the order still being pending.
	CancelOrder(ctx context.Context, id, userID uuid.UUID) error

	// SettleTrade performs the atomic balance/holdings mutation and
	// appends the audit transaction, all or nothing.
	SettleTrade(ctx context.Context, params SettleParams) (*Transaction, error)

	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	AppendNotification(ctx context.Context, userID uuid.UUID, message string) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error
}
