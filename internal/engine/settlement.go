package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

// ErrUnknownAsset means the oracle cannot resolve the symbol at call
// time, so no execution price exists.
var ErrUnknownAsset = errors.New("unknown asset")

// SettleStore is the slice of the ledger store settlement needs.
type SettleStore interface {
	SettleTrade(ctx context.Context, params storage.SettleParams) (*storage.Transaction, error)
}

// Settler is the one primitive that mutates balances and holdings. Both
// user-initiated trades and sweep-driven fills go through it; order
// status is the caller's concern.
type Settler struct {
	store SettleStore
}

func NewSettler(store SettleStore) *Settler {
	return &Settler{store: store}
}

// executionTerms decides the execution price and funding leg for a
// trade. TRY-quoted assets settle against the cash balance at the
// quoted price. The stablecoin itself is bought and sold with TRY cash
// at its TRY rate. Everything else is USD-quoted and settles against
// the stablecoin holding.
func executionTerms(symbol string, quote pricing.Quote, rateTRYPerUSD decimal.Decimal) (decimal.Decimal, string) {
	switch {
	case symbol == pricing.SymbolStablecoin:
		return quote.Price.Mul(rateTRYPerUSD), ""
	case quote.Currency == pricing.CurrencyTRY:
		return quote.Price, ""
	default:
		return quote.Price, pricing.SymbolStablecoin
	}
}

// SettleAtQuote settles quantity units of symbol at the given quote.
func (s *Settler) SettleAtQuote(ctx context.Context, userID uuid.UUID, symbol string, quantity decimal.Decimal, side storage.OrderSide, quote pricing.Quote, rateTRYPerUSD decimal.Decimal) (*storage.Transaction, error) {
	price, funding := executionTerms(symbol, quote, rateTRYPerUSD)
	return s.store.SettleTrade(ctx, storage.SettleParams{
		UserID:       userID,
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		FundingAsset: funding,
	})
}
