package storage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// settleSnapshot is the slice of user state a settlement reads and
// rewrites. Both store implementations load it under their own locking
// discipline and persist the outcome atomically.
type settleSnapshot struct {
	Cash            decimal.Decimal
	TargetQuantity  decimal.Decimal
	TargetAvgCost   decimal.Decimal
	FundingQuantity decimal.Decimal
}

type settleOutcome struct {
	Cash            decimal.Decimal
	TargetQuantity  decimal.Decimal
	TargetAvgCost   decimal.Decimal
	FundingQuantity decimal.Decimal
	Total           decimal.Decimal
	TxType          TransactionType
}

// applySettlement computes the post-trade state. Pure; precondition
// checks and the mutation derive from the same snapshot, so callers must
// hold their exclusion scope across load, apply, and persist.
func applySettlement(snap settleSnapshot, p SettleParams) (settleOutcome, error) {
	if p.Quantity.LessThanOrEqual(decimal.Zero) {
		return settleOutcome{}, fmt.Errorf("settle %s: quantity must be positive, got %s", p.Symbol, p.Quantity)
	}
	if p.Price.LessThanOrEqual(decimal.Zero) {
		return settleOutcome{}, fmt.Errorf("settle %s: price must be positive, got %s", p.Symbol, p.Price)
	}

	total := p.Quantity.Mul(p.Price)
	out := settleOutcome{
		Cash:            snap.Cash,
		TargetQuantity:  snap.TargetQuantity,
		TargetAvgCost:   snap.TargetAvgCost,
		FundingQuantity: snap.FundingQuantity,
		Total:           total,
	}

	switch p.Side {
	case SideBuy:
		out.TxType = TxBuy
		if p.FundingAsset == "" {
			if snap.Cash.LessThan(total) {
				return settleOutcome{}, fmt.Errorf("%w: need %s, cash %s", ErrInsufficientFunds, total, snap.Cash)
			}
			out.Cash = snap.Cash.Sub(total)
		} else {
			if snap.FundingQuantity.LessThan(total) {
				return settleOutcome{}, fmt.Errorf("%w: need %s %s, held %s", ErrInsufficientFunds, total, p.FundingAsset, snap.FundingQuantity)
			}
			out.FundingQuantity = snap.FundingQuantity.Sub(total)
		}
		newQty := snap.TargetQuantity.Add(p.Quantity)
		// Weighted-average cost over the combined position.
		out.TargetAvgCost = snap.TargetQuantity.Mul(snap.TargetAvgCost).Add(total).Div(newQty)
		out.TargetQuantity = newQty

	case SideSell:
		out.TxType = TxSell
		if snap.TargetQuantity.LessThan(p.Quantity) {
			return settleOutcome{}, fmt.Errorf("%w: selling %s %s, held %s", ErrInsufficientHoldings, p.Quantity, p.Symbol, snap.TargetQuantity)
		}
		out.TargetQuantity = snap.TargetQuantity.Sub(p.Quantity)
		// AvgCost of the remaining position is unchanged by a sell.
		if p.FundingAsset == "" {
			out.Cash = snap.Cash.Add(total)
		} else {
			out.FundingQuantity = snap.FundingQuantity.Add(total)
		}

	default:
		return settleOutcome{}, fmt.Errorf("invalid order side %q", p.Side)
	}

	return out, nil
}
