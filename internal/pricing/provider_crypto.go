package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// coinIDs maps our symbols to CoinGecko asset ids. Symbols outside this
// table are not this provider's business.
var coinIDs = map[string]string{
	"BTC":            "bitcoin",
	"ETH":            "ethereum",
	"SOL":            "solana",
	"AVAX":           "avalanche-2",
	"XRP":            "ripple",
	SymbolStablecoin: "tether",
}

// CryptoProvider fetches USD spot prices from a CoinGecko-compatible
// endpoint.
type CryptoProvider struct {
	baseURL string
	client  *http.Client
}

func NewCryptoProvider(baseURL string, timeout time.Duration) *CryptoProvider {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &CryptoProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *CryptoProvider) Name() string { return "coingecko" }

func (p *CryptoProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	ids := make([]string, 0, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		if id, ok := coinIDs[symbol]; ok {
			ids = append(ids, id)
			bySymbol[symbol] = id
		}
	}
	if len(ids) == 0 {
		return map[string]Quote{}, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		p.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	var payload map[string]struct {
		USD       json.Number `json:"usd"`
		USDChange json.Number `json:"usd_24h_change"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("coingecko decode: %w", err)
	}

	quotes := make(map[string]Quote, len(bySymbol))
	for symbol, id := range bySymbol {
		entry, ok := payload[id]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(entry.USD.String())
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		change, _ := decimal.NewFromString(entry.USDChange.String())

		category := CategoryCrypto
		if symbol == SymbolStablecoin {
			category = CategoryCurrency
		}
		quotes[symbol] = Quote{
			Symbol:        symbol,
			Price:         price,
			ChangePercent: change,
			Currency:      CurrencyUSD,
			Category:      category,
		}
	}
	return quotes, nil
}
