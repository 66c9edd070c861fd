package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User holds the TRY cash balance. Holdings live in their own records.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Holding is one position keyed by (user, symbol). AvgCost is denominated
// in the asset's native quote currency.
type Holding struct {
	UserID    uuid.UUID
	Symbol    string
	Quantity  decimal.Decimal
	AvgCost   decimal.Decimal
	UpdatedAt time.Time
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func ParseSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case SideBuy, SideSell:
		return OrderSide(s), nil
	}
	return "", fmt.Errorf("invalid order side %q", s)
}

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusFailed     OrderStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// OrderSize is either a unit quantity or a notional cash amount, never
// both. The zero value is invalid; use SizeByQuantity or SizeByNotional.
type OrderSize struct {
	value      decimal.Decimal
	byNotional bool
}

func SizeByQuantity(quantity decimal.Decimal) OrderSize {
	return OrderSize{value: quantity}
}

func SizeByNotional(amount decimal.Decimal) OrderSize {
	return OrderSize{value: amount, byNotional: true}
}

func (s OrderSize) ByNotional() bool { return s.byNotional }

// Quantity returns the unit quantity; zero for notional sizes.
func (s OrderSize) Quantity() decimal.Decimal {
	if s.byNotional {
		return decimal.Zero
	}
	return s.value
}

// Notional returns the cash amount; zero for quantity sizes.
func (s OrderSize) Notional() decimal.Decimal {
	if !s.byNotional {
		return decimal.Zero
	}
	return s.value
}

// Resolve converts the size to a concrete quantity at the given execution
// price. Notional sizes divide by the price; a non-positive price cannot
// be resolved.
func (s OrderSize) Resolve(price decimal.Decimal) (decimal.Decimal, error) {
	if !s.byNotional {
		return s.value, nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("cannot resolve notional size at price %s", price)
	}
	return s.value.Div(price), nil
}

type LimitOrder struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Symbol        string
	Side          OrderSide
	Size          OrderSize
	TargetPrice   decimal.Decimal
	Status        OrderStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TransactionType string

const (
	TxBuy     TransactionType = "BUY"
	TxSell    TransactionType = "SELL"
	TxDeposit TransactionType = "DEPOSIT"
)

// Transaction is an immutable audit record, appended once per settled
// trade or deposit.
type Transaction struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      TransactionType
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Message   string
	Read      bool
	CreatedAt time.Time
}
