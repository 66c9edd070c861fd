package storage

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplySettlementBuyFromCash(t *testing.T) {
	out, err := applySettlement(settleSnapshot{
		Cash: dec("100000"),
	}, SettleParams{
		Symbol:   "THYAO",
		Side:     SideBuy,
		Quantity: dec("100"),
		Price:    dec("290"),
	})
	if err != nil {
		t.Fatalf("applySettlement: %v", err)
	}

	if !out.Cash.Equal(dec("71000")) {
		t.Errorf("cash = %s, want 71000", out.Cash)
	}
	if !out.TargetQuantity.Equal(dec("100")) {
		t.Errorf("quantity = %s, want 100", out.TargetQuantity)
	}
	if !out.TargetAvgCost.Equal(dec("290")) {
		t.Errorf("avg cost = %s, want 290", out.TargetAvgCost)
	}
	if out.TxType != TxBuy {
		t.Errorf("tx type = %s, want BUY", out.TxType)
	}
}

func TestApplySettlementBuyWeightedAverage(t *testing.T) {
	// 10 @ 100, then 10 more @ 200 -> 20 @ 150.
	out, err := applySettlement(settleSnapshot{
		Cash:           dec("5000"),
		TargetQuantity: dec("10"),
		TargetAvgCost:  dec("100"),
	}, SettleParams{
		Symbol:   "ASELS",
		Side:     SideBuy,
		Quantity: dec("10"),
		Price:    dec("200"),
	})
	if err != nil {
		t.Fatalf("applySettlement: %v", err)
	}

	if !out.TargetQuantity.Equal(dec("20")) {
		t.Errorf("quantity = %s, want 20", out.TargetQuantity)
	}
	if !out.TargetAvgCost.Equal(dec("150")) {
		t.Errorf("avg cost = %s, want 150", out.TargetAvgCost)
	}
}

func TestApplySettlementBuyInsufficientCash(t *testing.T) {
	_, err := applySettlement(settleSnapshot{
		Cash: dec("100"),
	}, SettleParams{
		Symbol:   "BTC",
		Side:     SideBuy,
		Quantity: dec("1"),
		Price:    dec("97000"),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestApplySettlementBuyFromFundingHolding(t *testing.T) {
	out, err := applySettlement(settleSnapshot{
		Cash:            dec("50"),
		FundingQuantity: dec("5000"),
	}, SettleParams{
		Symbol:       "ETH",
		Side:         SideBuy,
		Quantity:     dec("1"),
		Price:        dec("3400"),
		FundingAsset: "USDT",
	})
	if err != nil {
		t.Fatalf("applySettlement: %v", err)
	}

	// Cash untouched; the stablecoin holding pays.
	if !out.Cash.Equal(dec("50")) {
		t.Errorf("cash = %s, want 50", out.Cash)
	}
	if !out.FundingQuantity.Equal(dec("1600")) {
		t.Errorf("funding = %s, want 1600", out.FundingQuantity)
	}

	_, err = applySettlement(settleSnapshot{
		Cash:            dec("1000000"),
		FundingQuantity: dec("100"),
	}, SettleParams{
		Symbol:       "ETH",
		Side:         SideBuy,
		Quantity:     dec("1"),
		Price:        dec("3400"),
		FundingAsset: "USDT",
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds despite ample cash, got %v", err)
	}
}

func TestApplySettlementSell(t *testing.T) {
	out, err := applySettlement(settleSnapshot{
		Cash:           dec("1000"),
		TargetQuantity: dec("10"),
		TargetAvgCost:  dec("100"),
	}, SettleParams{
		Symbol:   "GARAN",
		Side:     SideSell,
		Quantity: dec("4"),
		Price:    dec("130"),
	})
	if err != nil {
		t.Fatalf("applySettlement: %v", err)
	}

	if !out.Cash.Equal(dec("1520")) {
		t.Errorf("cash = %s, want 1520", out.Cash)
	}
	if !out.TargetQuantity.Equal(dec("6")) {
		t.Errorf("quantity = %s, want 6", out.TargetQuantity)
	}
	// Selling does not reprice what remains.
	if !out.TargetAvgCost.Equal(dec("100")) {
		t.Errorf("avg cost = %s, want 100", out.TargetAvgCost)
	}
	if out.TxType != TxSell {
		t.Errorf("tx type = %s, want SELL", out.TxType)
	}
}

func TestApplySettlementSellInsufficientHoldings(t *testing.T) {
	_, err := applySettlement(settleSnapshot{
		TargetQuantity: dec("1"),
	}, SettleParams{
		Symbol:   "BTC",
		Side:     SideSell,
		Quantity: dec("2"),
		Price:    dec("97000"),
	})
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("expected ErrInsufficientHoldings, got %v", err)
	}
}

func TestApplySettlementRejectsNonPositiveInputs(t *testing.T) {
	snap := settleSnapshot{Cash: dec("1000")}

	if _, err := applySettlement(snap, SettleParams{Side: SideBuy, Quantity: dec("0"), Price: dec("10")}); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, err := applySettlement(snap, SettleParams{Side: SideBuy, Quantity: dec("1"), Price: dec("-10")}); err == nil {
		t.Error("expected error for negative price")
	}
}

// A buy followed by the mirror sell must restore the original cash.
func TestApplySettlementRoundTripConservesValue(t *testing.T) {
	buy, err := applySettlement(settleSnapshot{Cash: dec("10000")}, SettleParams{
		Symbol: "SOL", Side: SideBuy, Quantity: dec("10"), Price: dec("210"),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	sell, err := applySettlement(settleSnapshot{
		Cash:           buy.Cash,
		TargetQuantity: buy.TargetQuantity,
		TargetAvgCost:  buy.TargetAvgCost,
	}, SettleParams{
		Symbol: "SOL", Side: SideSell, Quantity: dec("10"), Price: dec("210"),
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	if !sell.Cash.Equal(dec("10000")) {
		t.Errorf("cash after round trip = %s, want 10000", sell.Cash)
	}
	if !sell.TargetQuantity.IsZero() {
		t.Errorf("quantity after round trip = %s, want 0", sell.TargetQuantity)
	}
}
