package pricing

import "github.com/shopspring/decimal"

// Currencies a quote can be natively expressed in. TRY is the cash
// currency users hold; USD is the valuation currency.
const (
	CurrencyTRY = "TRY"
	CurrencyUSD = "USD"
)

// Well-known symbols. USDT is treated 1:1 with USD by valuation and
// funds USD-quoted trades; USDTRY is the TRY-per-USD exchange rate.
const (
	SymbolStablecoin = "USDT"
	SymbolUSDTRY     = "USDTRY"
)

const (
	CategoryStock     = "stock"
	CategoryCrypto    = "crypto"
	CategoryCommodity = "commodity"
	CategoryCurrency  = "currency"
)

// Quote is the ephemeral per-symbol price snapshot. Never persisted.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Currency      string          `json:"currency"`
	Category      string          `json:"category"`
}
