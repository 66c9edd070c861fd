package pricing

import (
	"strings"
	"sync"
	"time"
)

type cachedQuote struct {
	quote    Quote
	storedAt time.Time
}

// quoteCache keeps the last good quote per symbol. Fresh entries short-
// circuit provider calls; stale entries still serve as the degraded
// answer when every provider misses a symbol.
type quoteCache struct {
	mu      sync.RWMutex
	entries map[string]cachedQuote
}

func newQuoteCache() *quoteCache {
	return &quoteCache{entries: make(map[string]cachedQuote)}
}

func (c *quoteCache) get(symbol string) (Quote, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[strings.ToUpper(symbol)]
	if !ok {
		return Quote{}, time.Time{}, false
	}
	return entry.quote, entry.storedAt, true
}

func (c *quoteCache) put(quotes map[string]Quote) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for symbol, quote := range quotes {
		c.entries[strings.ToUpper(symbol)] = cachedQuote{quote: quote, storedAt: now}
	}
}
