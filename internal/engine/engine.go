// Package engine evaluates pending limit orders against live prices and
// settles the eligible ones. One Sweep call is one full pass; sweeps may
// overlap, and the per-order PENDING->PROCESSING claim guarantees each
// order settles at most once.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
	"github.com/FrknKoseoglu/phintech-core/libs/kafka"
)

// ErrSweepInProgress is returned when another sweep holds the advisory
// lock. The caller simply retries on the next trigger.
var ErrSweepInProgress = errors.New("sweep already in progress")

type Oracle interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]pricing.Quote, error)
}

// OrderStore is the slice of the ledger store the sweep needs.
type OrderStore interface {
	ListPendingOrders(ctx context.Context) ([]storage.LimitOrder, error)
	ClaimOrder(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseOrder(ctx context.Context, id uuid.UUID) error
	CompleteOrder(ctx context.Context, id uuid.UUID) error
	FailOrder(ctx context.Context, id uuid.UUID, reason string) error
	AppendNotification(ctx context.Context, userID uuid.UUID, message string) error
}

// Summary is the caller-facing result of one sweep. Skipped covers
// quote gaps, timeouts, and claims lost to a concurrent sweep; orders
// whose price has not crossed the target are processed but counted
// nowhere else.
type Summary struct {
	Processed       int      `json:"processed"`
	Completed       int      `json:"completed"`
	Failed          int      `json:"failed"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

type Config struct {
	OracleTimeout time.Duration
	SettleTimeout time.Duration
	Concurrency   int
	EventsTopic   string
	// FallbackRate is the TRY-per-USD rate used when the oracle has no
	// USDTRY quote. Must be positive.
	FallbackRate decimal.Decimal
}

func (c *Config) applyDefaults() {
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 5 * time.Second
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 5 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.FallbackRate.LessThanOrEqual(decimal.Zero) {
		c.FallbackRate = decimal.NewFromFloat(34.4)
	}
}

type Engine struct {
	store     OrderStore
	oracle    Oracle
	settler   *Settler
	lock      *SweepLock
	publisher kafka.Publisher
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
}

// New builds an engine. lock and publisher may be nil; the engine then
// runs without the advisory lock and without event publishing.
func New(store OrderStore, oracle Oracle, settler *Settler, lock *SweepLock, publisher kafka.Publisher, cfg Config, logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		store:     store,
		oracle:    oracle,
		settler:   settler,
		lock:      lock,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Eligible reports whether an order may execute at the given price.
// BUY fills at or below the target, SELL at or above; the boundary is
// inclusive on both sides. This asymmetry is the product semantics —
// do not "fix" it.
func Eligible(side storage.OrderSide, price, target decimal.Decimal) bool {
	switch side {
	case storage.SideBuy:
		return price.LessThanOrEqual(target)
	case storage.SideSell:
		return price.GreaterThanOrEqual(target)
	}
	return false
}

// Sweep runs one full evaluation pass over all pending orders.
func (e *Engine) Sweep(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if e.lock != nil {
		release, acquired, err := e.lock.TryAcquire(ctx)
		switch {
		case err != nil:
			// Redis being down must not stop settlements; the per-order
			// claim still protects against double execution.
			e.logger.Warn("sweep lock unavailable, proceeding unlocked", "error", err)
		case !acquired:
			if e.metrics != nil {
				e.metrics.SweepsTotal.WithLabelValues("contended").Inc()
			}
			return nil, ErrSweepInProgress
		default:
			defer release()
		}
	}

	summary, err := e.sweep(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.SweepsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	summary.ExecutionTimeMs = time.Since(start).Milliseconds()
	if e.metrics != nil {
		e.metrics.SweepsTotal.WithLabelValues("success").Inc()
		e.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Info("sweep finished",
		"processed", summary.Processed,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", summary.ExecutionTimeMs,
	)
	return summary, nil
}

func (e *Engine) sweep(ctx context.Context) (*Summary, error) {
	orders, err := e.store.ListPendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	summary := &Summary{Processed: len(orders), Errors: []string{}}
	if len(orders) == 0 {
		return summary, nil
	}

	symbols := make([]string, 0, len(orders)+1)
	for _, order := range orders {
		symbols = append(symbols, order.Symbol)
	}
	// The TRY rate rides along in the same batch; stablecoin orders
	// price off it.
	symbols = append(symbols, pricing.SymbolUSDTRY)

	oracleCtx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	quotes, err := e.oracle.GetQuotes(oracleCtx, symbols)
	cancel()
	if err != nil {
		// Transient data gap: every order stays pending for the next
		// sweep.
		summary.Skipped = len(orders)
		summary.Errors = append(summary.Errors, fmt.Sprintf("quote fetch failed: %v", err))
		return summary, nil
	}

	rate := e.cfg.FallbackRate
	if rateQuote, ok := quotes[pricing.SymbolUSDTRY]; ok && rateQuote.Price.IsPositive() {
		rate = rateQuote.Price
	}

	// Orders are settled oldest-first per user; users run concurrently.
	// Two settlements for one user never overlap.
	perUser := make(map[uuid.UUID][]storage.LimitOrder)
	userOrder := make([]uuid.UUID, 0)
	for _, order := range orders {
		if _, seen := perUser[order.UserID]; !seen {
			userOrder = append(userOrder, order.UserID)
		}
		perUser[order.UserID] = append(perUser[order.UserID], order)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, userID := range userOrder {
		batch := perUser[userID]
		g.Go(func() error {
			for _, order := range batch {
				outcome, diag := e.processOrder(gctx, order, quotes, rate)
				mu.Lock()
				switch outcome {
				case outcomeCompleted:
					summary.Completed++
				case outcomeFailed:
					summary.Failed++
				case outcomeSkipped:
					summary.Skipped++
				}
				if diag != "" {
					summary.Errors = append(summary.Errors, diag)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return summary, nil
}

type sweepOutcome int

const (
	outcomeUntouched sweepOutcome = iota
	outcomeCompleted
	outcomeFailed
	outcomeSkipped
)

// processOrder handles exactly one order. Failures are isolated here:
// whatever happens, the rest of the batch continues.
func (e *Engine) processOrder(ctx context.Context, order storage.LimitOrder, quotes map[string]pricing.Quote, rate decimal.Decimal) (sweepOutcome, string) {
	quote, ok := quotes[order.Symbol]
	if !ok {
		// A data-source gap is no reason to abandon a standing
		// instruction; retry next sweep.
		return outcomeSkipped, fmt.Sprintf("order %s: no quote for %s, left pending", order.ID, order.Symbol)
	}

	price, _ := executionTerms(order.Symbol, quote, rate)
	if !Eligible(order.Side, price, order.TargetPrice) {
		return outcomeUntouched, ""
	}

	claimed, err := e.store.ClaimOrder(ctx, order.ID)
	if err != nil {
		return outcomeSkipped, fmt.Sprintf("order %s: claim failed: %v", order.ID, err)
	}
	if !claimed {
		// A concurrent sweep got here first.
		return outcomeSkipped, ""
	}

	quantity, err := order.Size.Resolve(price)
	if err != nil || quantity.LessThanOrEqual(decimal.Zero) {
		reason := fmt.Sprintf("cannot resolve quantity at price %s", price)
		e.finalizeFailed(ctx, order, reason)
		return outcomeFailed, fmt.Sprintf("order %s: %s", order.ID, reason)
	}

	settleCtx, cancel := context.WithTimeout(ctx, e.cfg.SettleTimeout)
	start := time.Now()
	record, err := e.settler.SettleAtQuote(settleCtx, order.UserID, order.Symbol, quantity, order.Side, quote, rate)
	cancel()
	if e.metrics != nil {
		e.metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// Timed out, not failed: release the claim and retry on the
			// next sweep.
			if relErr := e.store.ReleaseOrder(ctx, order.ID); relErr != nil {
				e.logger.Error("release claimed order failed", "order_id", order.ID, "error", relErr)
			}
			return outcomeSkipped, fmt.Sprintf("order %s: settlement timed out, left pending", order.ID)
		}
		e.finalizeFailed(ctx, order, err.Error())
		return outcomeFailed, fmt.Sprintf("order %s: settlement failed: %v", order.ID, err)
	}

	if err := e.store.CompleteOrder(ctx, order.ID); err != nil {
		e.logger.Error("complete order failed", "order_id", order.ID, "error", err)
	}
	message := fmt.Sprintf("%s order filled: %s %s at %s (total %s)",
		order.Side, record.Quantity, order.Symbol, record.Price, record.Total)
	if err := e.store.AppendNotification(ctx, order.UserID, message); err != nil {
		e.logger.Error("append notification failed", "order_id", order.ID, "error", err)
	}
	e.publishOrderEvent(ctx, order, record, string(storage.StatusCompleted))

	if e.metrics != nil {
		e.metrics.OrdersSwept.WithLabelValues("completed").Inc()
	}
	return outcomeCompleted, ""
}

func (e *Engine) finalizeFailed(ctx context.Context, order storage.LimitOrder, reason string) {
	if err := e.store.FailOrder(ctx, order.ID, reason); err != nil {
		e.logger.Error("fail order failed", "order_id", order.ID, "error", err)
		return
	}
	message := fmt.Sprintf("%s order for %s failed: %s", order.Side, order.Symbol, reason)
	if err := e.store.AppendNotification(ctx, order.UserID, message); err != nil {
		e.logger.Error("append notification failed", "order_id", order.ID, "error", err)
	}
	e.publishOrderEvent(ctx, order, nil, string(storage.StatusFailed))
	if e.metrics != nil {
		e.metrics.OrdersSwept.WithLabelValues("failed").Inc()
	}
}

type orderEvent struct {
	kafka.Envelope
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Status  string `json:"status"`
	Price   string `json:"price,omitempty"`
	Total   string `json:"total,omitempty"`
}

func (e *Engine) publishOrderEvent(ctx context.Context, order storage.LimitOrder, record *storage.Transaction, status string) {
	if e.publisher == nil || e.cfg.EventsTopic == "" {
		return
	}

	eventType := "order.failed"
	if status == string(storage.StatusCompleted) {
		eventType = "order.completed"
	}
	envelope, err := kafka.NewEnvelope(eventType, 1, order.ID.String())
	if err != nil {
		e.logger.Error("build order event failed", "order_id", order.ID, "error", err)
		return
	}

	event := orderEvent{
		Envelope: envelope,
		OrderID:  order.ID.String(),
		UserID:   order.UserID.String(),
		Symbol:   order.Symbol,
		Side:     string(order.Side),
		Status:   status,
	}
	if record != nil {
		event.Price = record.Price.String()
		event.Total = record.Total.String()
	}

	if _, _, err := e.publisher.PublishJSON(ctx, e.cfg.EventsTopic, order.UserID.String(), event); err != nil {
		e.logger.Error("publish order event failed", "order_id", order.ID, "error", err)
	}
}
