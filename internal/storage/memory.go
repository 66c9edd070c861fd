package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory implements Store with a single mutex in place of database
// transactions. It backs tests and the local demo mode; every method
// honors the same contract as Postgres, including the CAS transitions.
type Memory struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*User
	usersByEmail  map[string]uuid.UUID
	holdings      map[uuid.UUID]map[string]*Holding
	orders        map[uuid.UUID]*LimitOrder
	transactions  []Transaction
	notifications []Notification
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[uuid.UUID]*User),
		usersByEmail: make(map[string]uuid.UUID),
		holdings:     make(map[uuid.UUID]map[string]*Holding),
		orders:       make(map[uuid.UUID]*LimitOrder),
	}
}

func (m *Memory) CreateUser(_ context.Context, email, passwordHash string, openingBalance decimal.Decimal) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := m.usersByEmail[key]; exists {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Balance:      openingBalance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	m.usersByEmail[key] = user.ID
	copy := *user
	return &copy, nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	copy := *m.users[id]
	return &copy, nil
}

func (m *Memory) Deposit(_ context.Context, userID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	user.Balance = user.Balance.Add(amount)
	user.UpdatedAt = time.Now().UTC()

	record := Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      TxDeposit,
		Quantity:  amount,
		Price:     decimal.NewFromInt(1),
		Total:     amount,
		CreatedAt: time.Now().UTC(),
	}
	m.transactions = append(m.transactions, record)
	return &record, nil
}

func (m *Memory) ListHoldings(_ context.Context, userID uuid.UUID) ([]Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Holding, 0, len(m.holdings[userID]))
	for _, h := range m.holdings[userID] {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// SetHolding seeds a position directly, bypassing settlement. Test and
// demo-seed helper.
func (m *Memory) SetHolding(userID uuid.UUID, symbol string, quantity, avgCost decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setHoldingLocked(userID, symbol, quantity, avgCost)
}

func (m *Memory) setHoldingLocked(userID uuid.UUID, symbol string, quantity, avgCost decimal.Decimal) {
	byUser := m.holdings[userID]
	if byUser == nil {
		byUser = make(map[string]*Holding)
		m.holdings[userID] = byUser
	}
	byUser[symbol] = &Holding{
		UserID:    userID,
		Symbol:    symbol,
		Quantity:  quantity,
		AvgCost:   avgCost,
		UpdatedAt: time.Now().UTC(),
	}
}

func (m *Memory) CreateOrder(_ context.Context, order *LimitOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = StatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id uuid.UUID) (*LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *Memory) ListOrders(_ context.Context, userID uuid.UUID, filter OrderFilter) ([]LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LimitOrder, 0)
	for _, order := range m.orders {
		if order.UserID != userID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) ListPendingOrders(_ context.Context) ([]LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]LimitOrder, 0)
	for _, order := range m.orders {
		if order.Status == StatusPending {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ClaimOrder(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return false, ErrOrderNotFound
	}
	if order.Status != StatusPending {
		return false, nil
	}
	order.Status = StatusProcessing
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) ReleaseOrder(_ context.Context, id uuid.UUID) error {
	return m.transition(id, StatusProcessing, StatusPending, "")
}

func (m *Memory) CompleteOrder(_ context.Context, id uuid.UUID) error {
	return m.transition(id, StatusProcessing, StatusCompleted, "")
}

func (m *Memory) FailOrder(_ context.Context, id uuid.UUID, reason string) error {
	return m.transition(id, StatusProcessing, StatusFailed, reason)
}

func (m *Memory) transition(id uuid.UUID, from, to OrderStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != from {
		return ErrOrderNotPending
	}
	order.Status = to
	order.FailureReason = reason
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CancelOrder(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status != StatusPending {
		return ErrOrderNotPending
	}
	order.Status = StatusCancelled
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SettleTrade(_ context.Context, params SettleParams) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[params.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	snap := settleSnapshot{Cash: user.Balance}
	if target := m.holdings[params.UserID][params.Symbol]; target != nil {
		snap.TargetQuantity = target.Quantity
		snap.TargetAvgCost = target.AvgCost
	}
	if params.FundingAsset != "" {
		if funding := m.holdings[params.UserID][params.FundingAsset]; funding != nil {
			snap.FundingQuantity = funding.Quantity
		}
	}

	out, err := applySettlement(snap, params)
	if err != nil {
		return nil, err
	}

	user.Balance = out.Cash
	user.UpdatedAt = time.Now().UTC()
	m.setHoldingLocked(params.UserID, params.Symbol, out.TargetQuantity, out.TargetAvgCost)
	if params.FundingAsset != "" {
		m.setHoldingLocked(params.UserID, params.FundingAsset, out.FundingQuantity, decimal.NewFromInt(1))
	}

	record := Transaction{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Type:      out.TxType,
		Symbol:    params.Symbol,
		Quantity:  params.Quantity,
		Price:     params.Price,
		Total:     out.Total,
		CreatedAt: time.Now().UTC(),
	}
	m.transactions = append(m.transactions, record)
	return &record, nil
}

func (m *Memory) ListTransactions(_ context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transaction, 0)
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].UserID != userID {
			continue
		}
		out = append(out, m.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) AppendNotification(_ context.Context, userID uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *Memory) MarkNotificationsRead(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].UserID == userID {
			m.notifications[i].Read = true
		}
	}
	return nil
}
