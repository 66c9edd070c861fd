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

// MarketProvider fetches BIST stocks, commodities, and the USDTRY rate
// from the collector API, which serves `/quotes?symbols=A,B` with a
// JSON array of quote rows.
type MarketProvider struct {
	baseURL string
	client  *http.Client
}

func NewMarketProvider(baseURL string, timeout time.Duration) *MarketProvider {
	return &MarketProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *MarketProvider) Name() string { return "collector" }

type marketQuoteRow struct {
	Symbol        string      `json:"symbol"`
	Price         json.Number `json:"price"`
	ChangePercent json.Number `json:"change_percent"`
	Currency      string      `json:"currency"`
	Category      string      `json:"category"`
}

func (p *MarketProvider) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if p.baseURL == "" {
		return map[string]Quote{}, nil
	}

	endpoint := fmt.Sprintf("%s/quotes?symbols=%s", p.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collector request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collector status %d", resp.StatusCode)
	}

	var rows []marketQuoteRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("collector decode: %w", err)
	}

	quotes := make(map[string]Quote, len(rows))
	for _, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(row.Price.String())
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		change, _ := decimal.NewFromString(row.ChangePercent.String())

		currency := strings.ToUpper(strings.TrimSpace(row.Currency))
		if currency == "" {
			currency = CurrencyTRY
		}
		category := strings.ToLower(strings.TrimSpace(row.Category))
		if category == "" {
			category = CategoryStock
		}
		quotes[symbol] = Quote{
			Symbol:        symbol,
			Price:         price,
			ChangePercent: change,
			Currency:      currency,
			Category:      category,
		}
	}
	return quotes, nil
}
