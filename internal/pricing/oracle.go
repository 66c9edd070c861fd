package pricing

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// Provider is one upstream quote source. Implementations return quotes
// for whatever subset of the requested symbols they cover and must not
// fail the batch for symbols they don't know.
type Provider interface {
	Name() string
	GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// Oracle merges multiple providers behind one batched lookup. Provider
// order is precedence. A provider failure degrades that provider's
// symbols to the last cached value, then to the static fallback table;
// a symbol no source knows is simply absent from the result.
type Oracle struct {
	providers []Provider
	cache     *quoteCache
	fallback  map[string]Quote
	freshFor  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type OracleOption func(*Oracle)

// WithFallback replaces the static fallback table.
func WithFallback(fallback map[string]Quote) OracleOption {
	return func(o *Oracle) { o.fallback = fallback }
}

// WithFreshFor sets how long a cached quote satisfies a lookup without
// touching providers.
func WithFreshFor(d time.Duration) OracleOption {
	return func(o *Oracle) { o.freshFor = d }
}

func NewOracle(providers []Provider, logger *slog.Logger, metrics *Metrics, opts ...OracleOption) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Oracle{
		providers: providers,
		cache:     newQuoteCache(),
		fallback:  DefaultFallback(),
		freshFor:  15 * time.Second,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetQuotes returns the latest known quote for each requested symbol.
// The result may omit symbols; it never fails because one upstream did.
func (o *Oracle) GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	wanted := normalizeSymbols(symbols)
	if len(wanted) == 0 {
		return map[string]Quote{}, nil
	}

	result := make(map[string]Quote, len(wanted))

	missing := wanted
	if o.freshFor > 0 {
		missing = missing[:0:0]
		now := time.Now()
		for _, symbol := range wanted {
			if quote, storedAt, ok := o.cache.get(symbol); ok && now.Sub(storedAt) <= o.freshFor {
				result[symbol] = quote
				continue
			}
			missing = append(missing, symbol)
		}
		if len(missing) == 0 {
			return result, nil
		}
	}

	fetched := o.fetch(ctx, missing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.cache.put(fetched)

	for _, symbol := range missing {
		if quote, ok := fetched[symbol]; ok {
			result[symbol] = quote
			continue
		}
		if quote, _, ok := o.cache.get(symbol); ok {
			if o.metrics != nil {
				o.metrics.DegradedQuotes.WithLabelValues("cache").Inc()
			}
			result[symbol] = quote
			continue
		}
		if quote, ok := o.fallback[symbol]; ok {
			if o.metrics != nil {
				o.metrics.DegradedQuotes.WithLabelValues("static").Inc()
			}
			result[symbol] = quote
			continue
		}
		o.logger.Warn("no quote source for symbol", "symbol", symbol)
	}

	return result, nil
}

func (o *Oracle) fetch(ctx context.Context, symbols []string) map[string]Quote {
	type providerResult struct {
		index  int
		quotes map[string]Quote
	}

	results := make(chan providerResult, len(o.providers))
	var wg sync.WaitGroup
	for i, provider := range o.providers {
		wg.Add(1)
		go func(index int, p Provider) {
			defer wg.Done()
			quotes, err := p.GetQuotes(ctx, symbols)
			status := "success"
			if err != nil {
				status = "error"
				o.logger.Warn("quote provider failed", "provider", p.Name(), "error", err)
			}
			if o.metrics != nil {
				o.metrics.ProviderRequests.WithLabelValues(p.Name(), status).Inc()
			}
			results <- providerResult{index: index, quotes: quotes}
		}(i, provider)
	}
	wg.Wait()
	close(results)

	byProvider := make([]map[string]Quote, len(o.providers))
	for res := range results {
		byProvider[res.index] = res.quotes
	}

	merged := make(map[string]Quote)
	for _, quotes := range byProvider {
		for symbol, quote := range quotes {
			if _, taken := merged[symbol]; !taken {
				merged[symbol] = quote
			}
		}
	}
	return merged
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		s := strings.ToUpper(strings.TrimSpace(symbol))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
