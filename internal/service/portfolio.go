package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/valuation"
)

// HoldingView is one position with its current market context. Price is
// in the asset's native quote currency; ValueUSD is normalized.
type HoldingView struct {
	Symbol       string
	Quantity     decimal.Decimal
	AvgCost      decimal.Decimal
	CurrentPrice *decimal.Decimal
	Currency     string
	ValueUSD     *decimal.Decimal
}

type PortfolioView struct {
	NetWorth   valuation.NetWorth
	ProfitLoss valuation.ProfitLoss
	Holdings   []HoldingView
	RateTRYUSD decimal.Decimal
}

// Portfolio values the whole account: cash, every holding, aggregate
// profit and loss. Holdings without a current quote appear in the list
// unpriced and contribute nothing to the totals.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*PortfolioView, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(holdings)+1)
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	symbols = append(symbols, pricing.SymbolUSDTRY)

	quotes, err := s.quoter.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}
	rate := s.rateFrom(quotes)

	view := &PortfolioView{
		NetWorth:   valuation.ComputeNetWorth(user.Balance, holdings, quotes, rate),
		ProfitLoss: valuation.ComputeProfitLoss(holdings, quotes, rate),
		Holdings:   make([]HoldingView, 0, len(holdings)),
		RateTRYUSD: rate,
	}

	for _, h := range holdings {
		hv := HoldingView{
			Symbol:   h.Symbol,
			Quantity: h.Quantity,
			AvgCost:  h.AvgCost,
		}
		if quote, ok := quotes[h.Symbol]; ok {
			price := quote.Price
			hv.CurrentPrice = &price
			hv.Currency = quote.Currency

			value := valuation.HoldingValueUSD(h.Quantity, quote, rate)
			hv.ValueUSD = &value
		}
		view.Holdings = append(view.Holdings, hv)
	}
	return view, nil
}
