// Package valuation normalizes heterogeneous holdings into USD. It is
// the only place in the codebase that converts between TRY, USD, and
// the stablecoin; everything else consumes its output.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

// NetWorth is the single-currency view of an account. USD figures are
// the native ones; TotalTRY is derived at the same exchange rate.
type NetWorth struct {
	TotalUSD       decimal.Decimal            `json:"total_usd"`
	TotalTRY       decimal.Decimal            `json:"total_try"`
	CashTRY        decimal.Decimal            `json:"cash_try"`
	CashTRYAsUSD   decimal.Decimal            `json:"cash_try_as_usd"`
	CashUSD        decimal.Decimal            `json:"cash_usd"`
	CashStablecoin decimal.Decimal            `json:"cash_stablecoin"`
	InvestmentsUSD decimal.Decimal            `json:"investments_usd"`
	Breakdown      map[string]decimal.Decimal `json:"breakdown"`
}

type ProfitLoss struct {
	AbsoluteUSD decimal.Decimal `json:"absolute_usd"`
	Percent     decimal.Decimal `json:"percent"`
}

var hundred = decimal.NewFromInt(100)

// HoldingValueUSD prices a position at the given quote. TRY-quoted
// assets are converted at rateTRYPerUSD; everything else is already USD.
func HoldingValueUSD(quantity decimal.Decimal, quote pricing.Quote, rateTRYPerUSD decimal.Decimal) decimal.Decimal {
	value := quantity.Mul(quote.Price)
	if quote.Currency == pricing.CurrencyTRY {
		value = value.Div(rateTRYPerUSD)
	}
	return value
}

// ComputeNetWorth values a balance plus holdings against a quote set.
// rateTRYPerUSD must be positive; callers substitute a conservative
// fallback before calling, never zero. A held symbol without a quote
// contributes nothing. Pure function.
func ComputeNetWorth(balanceTRY decimal.Decimal, holdings []storage.Holding, quotes map[string]pricing.Quote, rateTRYPerUSD decimal.Decimal) NetWorth {
	nw := NetWorth{
		CashTRY:      balanceTRY,
		CashTRYAsUSD: balanceTRY.Div(rateTRYPerUSD),
		Breakdown:    make(map[string]decimal.Decimal),
	}

	for _, holding := range holdings {
		if holding.Quantity.IsZero() {
			continue
		}

		// Currency-denominated holdings are cash, not investments.
		switch holding.Symbol {
		case pricing.SymbolStablecoin:
			nw.CashStablecoin = nw.CashStablecoin.Add(holding.Quantity)
			continue
		case pricing.CurrencyUSD:
			nw.CashUSD = nw.CashUSD.Add(holding.Quantity)
			continue
		case pricing.CurrencyTRY:
			nw.CashTRYAsUSD = nw.CashTRYAsUSD.Add(holding.Quantity.Div(rateTRYPerUSD))
			continue
		}

		quote, ok := quotes[holding.Symbol]
		if !ok {
			continue
		}
		value := HoldingValueUSD(holding.Quantity, quote, rateTRYPerUSD)
		nw.InvestmentsUSD = nw.InvestmentsUSD.Add(value)
		nw.Breakdown[quote.Category] = nw.Breakdown[quote.Category].Add(value)
	}

	nw.TotalUSD = nw.CashTRYAsUSD.Add(nw.CashUSD).Add(nw.CashStablecoin).Add(nw.InvestmentsUSD)
	nw.TotalTRY = nw.TotalUSD.Mul(rateTRYPerUSD)
	return nw
}

// ComputeProfitLoss aggregates unrealized gain over non-currency
// holdings. A holding without a quote is excluded from both sides.
// Percent is zero when the aggregate cost basis is zero.
func ComputeProfitLoss(holdings []storage.Holding, quotes map[string]pricing.Quote, rateTRYPerUSD decimal.Decimal) ProfitLoss {
	var value, cost decimal.Decimal

	for _, holding := range holdings {
		if holding.Quantity.IsZero() || isCurrencySymbol(holding.Symbol) {
			continue
		}
		quote, ok := quotes[holding.Symbol]
		if !ok {
			continue
		}

		current := holding.Quantity.Mul(quote.Price)
		basis := holding.Quantity.Mul(holding.AvgCost)
		if quote.Currency == pricing.CurrencyTRY {
			current = current.Div(rateTRYPerUSD)
			basis = basis.Div(rateTRYPerUSD)
		}
		value = value.Add(current)
		cost = cost.Add(basis)
	}

	pl := ProfitLoss{AbsoluteUSD: value.Sub(cost)}
	if cost.IsPositive() {
		pl.Percent = pl.AbsoluteUSD.Div(cost).Mul(hundred)
	}
	return pl
}

func isCurrencySymbol(symbol string) bool {
	switch symbol {
	case pricing.SymbolStablecoin, pricing.CurrencyUSD, pricing.CurrencyTRY:
		return true
	}
	return false
}
