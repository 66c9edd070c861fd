package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

// Trade buys or sells immediately at the current quote, bypassing the
// order book. Same settlement path the sweep uses, so the ledger rules
// are identical.
func (s *Service) Trade(ctx context.Context, userID uuid.UUID, symbol string, side storage.OrderSide, quantity decimal.Decimal) (*storage.Transaction, error) {
	quotes, err := s.quoter.GetQuotes(ctx, []string{symbol, pricing.SymbolUSDTRY})
	if err != nil {
		return nil, fmt.Errorf("quote lookup: %w", err)
	}
	quote, ok := quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}

	tx, err := s.settler.SettleAtQuote(ctx, userID, symbol, quantity, side, quote, s.rateFrom(quotes))
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("%s trade executed: %s %s at %s (total %s)", side, tx.Quantity, symbol, tx.Price, tx.Total)
	if err := s.store.AppendNotification(ctx, userID, message); err != nil {
		s.logger.Error("append trade notification failed", "user_id", userID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.TradesExecuted.WithLabelValues(string(side)).Inc()
	}
	s.logger.Info("market trade settled",
		"user_id", userID,
		"symbol", symbol,
		"side", side,
		"quantity", tx.Quantity,
		"price", tx.Price,
	)
	return tx, nil
}
