package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres is the durable Store implementation. Settlement and deposits
// run in a single transaction that locks the user row, so per-user
// mutations are serialized by the database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

func (s *Postgres) CreateUser(ctx context.Context, email, passwordHash string, openingBalance decimal.Decimal) (*User, error) {
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Balance:      openingBalance,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, email, passwordHash, openingBalance.String())
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, s.pool, `SELECT id, email, password_hash, balance::text, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, s.pool, `SELECT id, email, password_hash, balance::text, created_at, updated_at FROM users WHERE email = $1`, email)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) getUser(ctx context.Context, q rowQuerier, query string, arg any) (*User, error) {
	user := &User{}
	var balanceStr string
	row := q.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &balanceStr, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	var err error
	user.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return user, nil
}

func (s *Postgres) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = now() WHERE id = $2
	`, amount.String(), userID)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, ErrUserNotFound
	}

	record := &Transaction{
		ID:       uuid.New(),
		UserID:   userID,
		Type:     TxDeposit,
		Quantity: amount,
		Price:    decimal.NewFromInt(1),
		Total:    amount,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return record, nil
}

func (s *Postgres) ListHoldings(ctx context.Context, userID uuid.UUID) ([]Holding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, symbol, quantity::text, avg_cost::text, updated_at
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]Holding, 0)
	for rows.Next() {
		var h Holding
		var qtyStr, costStr string
		if err := rows.Scan(&h.UserID, &h.Symbol, &qtyStr, &costStr, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		if h.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("parse holding quantity: %w", err)
		}
		if h.AvgCost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("parse holding avg cost: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *Postgres) CreateOrder(ctx context.Context, order *LimitOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = StatusPending
	}

	var quantity, notional *string
	if order.Size.ByNotional() {
		v := order.Size.Notional().String()
		notional = &v
	} else {
		v := order.Size.Quantity().String()
		quantity = &v
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO limit_orders (id, user_id, symbol, side, quantity, notional, target_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, order.ID, order.UserID, order.Symbol, order.Side, quantity, notional, order.TargetPrice.String(), order.Status)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, symbol, side, quantity::text, notional::text, target_price::text, status, failure_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*LimitOrder, error) {
	var o LimitOrder
	var quantity, notional *string
	var targetStr string
	if err := row.Scan(&o.ID, &o.UserID, &o.Symbol, &o.Side, &quantity, &notional, &targetStr, &o.Status, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if o.TargetPrice, err = decimal.NewFromString(targetStr); err != nil {
		return nil, fmt.Errorf("parse target price: %w", err)
	}
	switch {
	case quantity != nil:
		qty, err := decimal.NewFromString(*quantity)
		if err != nil {
			return nil, fmt.Errorf("parse order quantity: %w", err)
		}
		o.Size = SizeByQuantity(qty)
	case notional != nil:
		amt, err := decimal.NewFromString(*notional)
		if err != nil {
			return nil, fmt.Errorf("parse order notional: %w", err)
		}
		o.Size = SizeByNotional(amt)
	default:
		return nil, fmt.Errorf("order %s has neither quantity nor notional", o.ID)
	}
	return &o, nil
}

func (s *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*LimitOrder, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM limit_orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *Postgres) ListOrders(ctx context.Context, userID uuid.UUID, filter OrderFilter) ([]LimitOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM limit_orders WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Postgres) ListPendingOrders(ctx context.Context) ([]LimitOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM limit_orders WHERE status = $1 ORDER BY created_at ASC
	`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]LimitOrder, error) {
	orders := make([]LimitOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *Postgres) ClaimOrder(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE limit_orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, StatusProcessing, id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("claim order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) ReleaseOrder(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusProcessing, StatusPending, "")
}

func (s *Postgres) CompleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, StatusProcessing, StatusCompleted, "")
}

func (s *Postgres) FailOrder(ctx context.Context, id uuid.UUID, reason string) error {
	return s.transition(ctx, id, StatusProcessing, StatusFailed, reason)
}

func (s *Postgres) transition(ctx context.Context, id uuid.UUID, from, to OrderStatus, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE limit_orders SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, to, reason, id, from)
	if err != nil {
		return fmt.Errorf("order %s -> %s: %w", from, to, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("order %s -> %s: %w", from, to, ErrOrderNotPending)
	}
	return nil
}

func (s *Postgres) CancelOrder(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE limit_orders SET status = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3 AND status = $4
	`, StatusCancelled, id, userID, StatusPending)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish "lost the race" from "not yours" from "gone".
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	s.logger.Debug("cancel lost to settlement", "order_id", id, "status", order.Status)
	return fmt.Errorf("%w: status is %s", ErrOrderNotPending, order.Status)
}

func (s *Postgres) SettleTrade(ctx context.Context, params SettleParams) (*Transaction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	// The user row lock serializes all settlements and deposits for one
	// user; holdings for that user are only ever touched under it.
	var balanceStr string
	row := tx.QueryRow(ctx, `SELECT balance::text FROM users WHERE id = $1 FOR UPDATE`, params.UserID)
	if err := row.Scan(&balanceStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	snap := settleSnapshot{}
	if snap.Cash, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	if snap.TargetQuantity, snap.TargetAvgCost, err = s.holdingInTx(ctx, tx, params.UserID, params.Symbol); err != nil {
		return nil, err
	}
	if params.FundingAsset != "" {
		if snap.FundingQuantity, _, err = s.holdingInTx(ctx, tx, params.UserID, params.FundingAsset); err != nil {
			return nil, err
		}
	}

	out, err := applySettlement(snap, params)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET balance = $1, updated_at = now() WHERE id = $2
	`, out.Cash.String(), params.UserID); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	if err := upsertHolding(ctx, tx, params.UserID, params.Symbol, out.TargetQuantity, out.TargetAvgCost); err != nil {
		return nil, err
	}
	if params.FundingAsset != "" {
		if err := upsertHolding(ctx, tx, params.UserID, params.FundingAsset, out.FundingQuantity, decimal.NewFromInt(1)); err != nil {
			return nil, err
		}
	}

	record := &Transaction{
		ID:       uuid.New(),
		UserID:   params.UserID,
		Type:     out.TxType,
		Symbol:   params.Symbol,
		Quantity: params.Quantity,
		Price:    params.Price,
		Total:    out.Total,
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return record, nil
}

func (s *Postgres) holdingInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	var qtyStr, costStr string
	row := tx.QueryRow(ctx, `
		SELECT quantity::text, avg_cost::text FROM holdings
		WHERE user_id = $1 AND symbol = $2 FOR UPDATE
	`, userID, symbol)
	if err := row.Scan(&qtyStr, &costStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, decimal.Zero, nil
		}
		return decimal.Zero, decimal.Zero, fmt.Errorf("lock holding %s: %w", symbol, err)
	}
	qty, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse holding quantity: %w", err)
	}
	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse holding avg cost: %w", err)
	}
	return qty, cost, nil
}

func upsertHolding(ctx context.Context, tx pgx.Tx, userID uuid.UUID, symbol string, quantity, avgCost decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO holdings (user_id, symbol, quantity, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, symbol)
		DO UPDATE SET quantity = $3, avg_cost = $4, updated_at = now()
	`, userID, symbol, quantity.String(), avgCost.String())
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", symbol, err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, record *Transaction) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, type, symbol, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, record.ID, record.UserID, record.Type, record.Symbol, record.Quantity.String(), record.Price.String(), record.Total.String())
	if err := row.Scan(&record.CreatedAt); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *Postgres) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	query := `
		SELECT id, user_id, type, symbol, quantity::text, price::text, total::text, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]Transaction, 0)
	for rows.Next() {
		var r Transaction
		var qtyStr, priceStr, totalStr string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Type, &r.Symbol, &qtyStr, &priceStr, &totalStr, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if r.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("parse transaction quantity: %w", err)
		}
		if r.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse transaction price: %w", err)
		}
		if r.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("parse transaction total: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Postgres) AppendNotification(ctx context.Context, userID uuid.UUID, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message) VALUES ($1, $2, $3)
	`, uuid.New(), userID, message)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *Postgres) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]Notification, error) {
	query := `SELECT id, user_id, message, read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Postgres) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
