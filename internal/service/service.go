// Package service implements the application operations behind the HTTP
// handlers: accounts, wallet, limit orders, immediate trades and
// portfolio valuation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/engine"
	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownAsset       = engine.ErrUnknownAsset
)

type Quoter interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]pricing.Quote, error)
}

type Service struct {
	store   storage.Store
	quoter  Quoter
	settler *engine.Settler
	logger  *slog.Logger
	metrics *Metrics

	openingBalance decimal.Decimal
	fallbackRate   decimal.Decimal
}

func New(store storage.Store, quoter Quoter, settler *engine.Settler, logger *slog.Logger, metrics *Metrics, openingBalance, fallbackRate decimal.Decimal) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if fallbackRate.LessThanOrEqual(decimal.Zero) {
		fallbackRate = decimal.NewFromFloat(34.4)
	}
	return &Service{
		store:          store,
		quoter:         quoter,
		settler:        settler,
		logger:         logger,
		metrics:        metrics,
		openingBalance: openingBalance,
		fallbackRate:   fallbackRate,
	}
}

// rateFrom picks the TRY-per-USD rate out of a quote batch, falling back
// to the configured static rate when the oracle has no USDTRY quote.
func (s *Service) rateFrom(quotes map[string]pricing.Quote) decimal.Decimal {
	if q, ok := quotes[pricing.SymbolUSDTRY]; ok && q.Price.IsPositive() {
		return q.Price
	}
	return s.fallbackRate
}
