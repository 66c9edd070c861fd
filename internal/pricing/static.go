package pricing

import "github.com/shopspring/decimal"

// DefaultFallback is the conservative static quote table used when both
// providers and the cache miss a symbol. Values are rounded snapshots,
// good enough for display and for keeping a sweep from stalling; never
// meant to be current.
func DefaultFallback() map[string]Quote {
	f := func(symbol string, price float64, currency, category string) Quote {
		return Quote{
			Symbol:   symbol,
			Price:    decimal.NewFromFloat(price),
			Currency: currency,
			Category: category,
		}
	}

	return map[string]Quote{
		"BTC":            f("BTC", 97000, CurrencyUSD, CategoryCrypto),
		"ETH":            f("ETH", 3400, CurrencyUSD, CategoryCrypto),
		"SOL":            f("SOL", 210, CurrencyUSD, CategoryCrypto),
		SymbolStablecoin: f(SymbolStablecoin, 1, CurrencyUSD, CategoryCurrency),
		"XAU":            f("XAU", 2650, CurrencyUSD, CategoryCommodity),
		"XAG":            f("XAG", 31, CurrencyUSD, CategoryCommodity),
		"THYAO":          f("THYAO", 290, CurrencyTRY, CategoryStock),
		"ASELS":          f("ASELS", 62, CurrencyTRY, CategoryStock),
		"GARAN":          f("GARAN", 128, CurrencyTRY, CategoryStock),
		SymbolUSDTRY:     f(SymbolUSDTRY, 34.4, CurrencyTRY, CategoryCurrency),
	}
}
