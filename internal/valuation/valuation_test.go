package valuation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func approxEqual(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(dec("0.01")) {
		t.Errorf("%s = %s, want ~%s", name, got, want)
	}
}

func TestComputeNetWorthCashOnly(t *testing.T) {
	nw := ComputeNetWorth(dec("100000"), nil, nil, dec("34.4"))

	approxEqual(t, "CashTRYAsUSD", nw.CashTRYAsUSD, dec("2906.98"))
	approxEqual(t, "TotalUSD", nw.TotalUSD, dec("2906.98"))
	approxEqual(t, "TotalTRY", nw.TotalTRY, dec("100000"))
	if !nw.InvestmentsUSD.IsZero() {
		t.Errorf("InvestmentsUSD = %s, want 0", nw.InvestmentsUSD)
	}
}

func TestComputeNetWorthMixedHoldings(t *testing.T) {
	holdings := []storage.Holding{
		{Symbol: "BTC", Quantity: dec("0.1"), AvgCost: dec("90000")},
		{Symbol: "THYAO", Quantity: dec("100"), AvgCost: dec("275")},
		{Symbol: "USDT", Quantity: dec("1500"), AvgCost: dec("1")},
	}
	quotes := map[string]pricing.Quote{
		"BTC":   {Symbol: "BTC", Price: dec("97000"), Currency: pricing.CurrencyUSD, Category: pricing.CategoryCrypto},
		"THYAO": {Symbol: "THYAO", Price: dec("290"), Currency: pricing.CurrencyTRY, Category: pricing.CategoryStock},
	}

	nw := ComputeNetWorth(dec("34400"), holdings, quotes, dec("34.4"))

	// Cash: 34400 TRY -> 1000 USD. Stablecoin counted 1:1.
	approxEqual(t, "CashTRYAsUSD", nw.CashTRYAsUSD, dec("1000"))
	approxEqual(t, "CashStablecoin", nw.CashStablecoin, dec("1500"))

	// BTC: 0.1 * 97000 = 9700 USD. THYAO: 100 * 290 TRY / 34.4 = 843.02 USD.
	approxEqual(t, "InvestmentsUSD", nw.InvestmentsUSD, dec("10543.02"))
	approxEqual(t, "crypto breakdown", nw.Breakdown[pricing.CategoryCrypto], dec("9700"))
	approxEqual(t, "stock breakdown", nw.Breakdown[pricing.CategoryStock], dec("843.02"))

	approxEqual(t, "TotalUSD", nw.TotalUSD, dec("13043.02"))
	approxEqual(t, "TotalTRY", nw.TotalTRY, nw.TotalUSD.Mul(dec("34.4")))
}

func TestComputeNetWorthSkipsUnquotedHolding(t *testing.T) {
	holdings := []storage.Holding{
		{Symbol: "MYSTERY", Quantity: dec("5"), AvgCost: dec("10")},
	}
	nw := ComputeNetWorth(dec("0"), holdings, map[string]pricing.Quote{}, dec("34.4"))
	if !nw.TotalUSD.IsZero() {
		t.Errorf("TotalUSD = %s, want 0 when no quote exists", nw.TotalUSD)
	}
}

func TestHoldingValueUSD(t *testing.T) {
	usd := HoldingValueUSD(dec("0.1"), pricing.Quote{Price: dec("97000"), Currency: pricing.CurrencyUSD}, dec("34.4"))
	approxEqual(t, "USD-quoted", usd, dec("9700"))

	try := HoldingValueUSD(dec("100"), pricing.Quote{Price: dec("290"), Currency: pricing.CurrencyTRY}, dec("34.4"))
	approxEqual(t, "TRY-quoted", try, dec("843.02"))
}

func TestComputeProfitLoss(t *testing.T) {
	holdings := []storage.Holding{
		// Bought at 90000, now 97000: +700 on 0.1 BTC.
		{Symbol: "BTC", Quantity: dec("0.1"), AvgCost: dec("90000")},
		// TRY stock, bought 275, now 290: +1500 TRY = +43.60 USD.
		{Symbol: "THYAO", Quantity: dec("100"), AvgCost: dec("275")},
		// Stablecoin cash is not an investment.
		{Symbol: "USDT", Quantity: dec("1500"), AvgCost: dec("1")},
	}
	quotes := map[string]pricing.Quote{
		"BTC":   {Price: dec("97000"), Currency: pricing.CurrencyUSD},
		"THYAO": {Price: dec("290"), Currency: pricing.CurrencyTRY},
	}

	pl := ComputeProfitLoss(holdings, quotes, dec("34.4"))

	approxEqual(t, "AbsoluteUSD", pl.AbsoluteUSD, dec("743.60"))
	// Cost basis: 9000 + 27500/34.4 = 9799.42 USD -> about +7.59%.
	approxEqual(t, "Percent", pl.Percent, dec("7.59"))
}

func TestComputeProfitLossZeroBasis(t *testing.T) {
	pl := ComputeProfitLoss(nil, nil, dec("34.4"))
	if !pl.AbsoluteUSD.IsZero() || !pl.Percent.IsZero() {
		t.Errorf("empty portfolio P/L = %+v, want zeros", pl)
	}

	// An airdropped position has a live value but no cost basis; the
	// percentage must stay zero instead of dividing by zero.
	holdings := []storage.Holding{
		{Symbol: "BTC", Quantity: dec("1"), AvgCost: dec("0")},
	}
	quotes := map[string]pricing.Quote{
		"BTC": {Price: dec("97000"), Currency: pricing.CurrencyUSD},
	}
	pl = ComputeProfitLoss(holdings, quotes, dec("34.4"))
	approxEqual(t, "AbsoluteUSD", pl.AbsoluteUSD, dec("97000"))
	if !pl.Percent.IsZero() {
		t.Errorf("Percent = %s, want 0 with zero cost basis", pl.Percent)
	}
}
