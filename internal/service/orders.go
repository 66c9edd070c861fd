package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

type SubmitOrderInput struct {
	UserID      uuid.UUID
	Symbol      string
	Side        storage.OrderSide
	Size        storage.OrderSize
	TargetPrice decimal.Decimal
}

// OrderView is an order annotated with the asset's current price when a
// quote was available at read time.
type OrderView struct {
	Order        storage.LimitOrder
	CurrentPrice *decimal.Decimal
}

// SubmitOrder accepts a limit order into the book. The symbol must be
// quotable right now; a standing instruction for an asset nobody can
// price would never execute.
func (s *Service) SubmitOrder(ctx context.Context, in SubmitOrderInput) (*storage.LimitOrder, error) {
	symbol := in.Symbol

	quotes, err := s.quoter.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, fmt.Errorf("quote lookup: %w", err)
	}
	if _, ok := quotes[symbol]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}

	order := &storage.LimitOrder{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Symbol:      symbol,
		Side:        in.Side,
		Size:        in.Size,
		TargetPrice: in.TargetPrice,
		Status:      storage.StatusPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersSubmitted.WithLabelValues(string(in.Side)).Inc()
	}
	s.logger.Info("order submitted",
		"order_id", order.ID,
		"user_id", in.UserID,
		"symbol", symbol,
		"side", in.Side,
		"target_price", in.TargetPrice,
	)
	return order, nil
}

// CancelOrder withdraws a pending order. If a sweep settles the order
// first the store reports ErrOrderNotPending; the caller lost the race,
// which is normal, not a fault.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	if err := s.store.CancelOrder(ctx, orderID, userID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.logger.Info("order cancelled", "order_id", orderID, "user_id", userID)
	return nil
}

// GetOrder returns one of the caller's orders. Orders of other users
// read as not found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*storage.LimitOrder, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the caller's orders annotated with current prices.
// Quote lookups are best effort; a pricing outage must not hide the
// order list.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, filter storage.OrderFilter) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, order := range orders {
		if !seen[order.Symbol] {
			seen[order.Symbol] = true
			symbols = append(symbols, order.Symbol)
		}
	}

	var quoteMap map[string]pricing.Quote
	if len(symbols) > 0 {
		quoteMap, err = s.quoter.GetQuotes(ctx, symbols)
		if err != nil {
			s.logger.Warn("quote annotation unavailable", "error", err)
			quoteMap = nil
		}
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		view := OrderView{Order: order}
		if quote, ok := quoteMap[order.Symbol]; ok {
			price := quote.Price
			view.CurrentPrice = &price
		}
		views = append(views, view)
	}
	return views, nil
}
