// Package marketdata fetches and normalizes per-symbol quote data from one or
// more upstream providers, with quota-aware source selection and usage
// accounting.
//
// Providers are isolated behind the QuoteSource interface: each source owns
// its payload shape and normalization, so selection logic never sees a
// concrete provider's wire format.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
)

// FallbackSource is the zero-cost, unlimited provider used when every
// configured source is exhausted or inactive.
const FallbackSource = "yahoo"

// quotaHeadroom keeps selection away from the hard daily limit; a source is
// skipped once usage reaches 90% of it.
const quotaHeadroom = 0.9

// QuoteSource fetches and normalizes a quote from one provider.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*models.MarketData, error)
}

// Gateway selects a provider per request, fetches quotes, and keeps
// quota/cost accounting.
type Gateway struct {
	mu      sync.Mutex
	sources map[string]*models.DataSource
	clients map[string]QuoteSource
	sink    *monitoring.Sink
}

// NewGateway creates a gateway over the given quota configs and provider
// clients. A client without a matching quota config is treated as unlimited
// and zero-cost; the fallback source is registered that way when absent.
func NewGateway(sink *monitoring.Sink, sources []models.DataSource, clients ...QuoteSource) (*Gateway, error) {
	g := &Gateway{
		sources: make(map[string]*models.DataSource),
		clients: make(map[string]QuoteSource),
		sink:    sink,
	}

	for _, c := range clients {
		g.clients[c.Name()] = c
	}
	if _, ok := g.clients[FallbackSource]; !ok {
		return nil, fmt.Errorf("fallback source %q is required", FallbackSource)
	}

	for i := range sources {
		src := sources[i]
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("invalid source config: %w", err)
		}
		if _, ok := g.clients[src.Name]; !ok {
			return nil, fmt.Errorf("no client registered for source %q", src.Name)
		}
		g.sources[src.Name] = &src
	}

	if _, ok := g.sources[FallbackSource]; !ok {
		g.sources[FallbackSource] = &models.DataSource{
			Name:     FallbackSource,
			Cost:     decimal.Zero,
			Priority: int(^uint(0) >> 1),
			IsActive: true,
		}
	}

	return g, nil
}

// getOptimalSource picks the highest-priority active source with quota
// headroom remaining. Selection is per request, not sticky. When every
// configured source is exhausted, the fallback wins.
func (g *Gateway) getOptimalSource(dataType string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.sources))
	for name := range g.sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := g.sources[names[i]], g.sources[names[j]]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})

	for _, name := range names {
		src := g.sources[name]
		if !src.IsActive {
			continue
		}
		if src.DailyLimit > 0 && float64(src.CurrentUsage) >= quotaHeadroom*float64(src.DailyLimit) {
			continue
		}
		return name
	}
	return FallbackSource
}

// GetQuote fetches a normalized quote for symbol from the optimal source.
// Exactly one API-usage metric is emitted per call, success or failure, so
// cost and quota accounting stay accurate. The call never retries; a failed
// symbol is the caller's to skip.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (*models.MarketData, error) {
	symbol = models.NormalizeSymbol(symbol)
	name := g.getOptimalSource("quote")
	client := g.clients[name]

	start := time.Now()
	data, err := client.Quote(ctx, symbol)
	elapsed := time.Since(start)

	statusCode := 200
	if err != nil {
		statusCode = 0
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			statusCode = httpErr.StatusCode
		}
	}

	g.account(name, "quote", elapsed, statusCode, err == nil)

	if err != nil {
		g.sink.LogError("marketdata", "get_quote", symbol, err)
		return nil, fmt.Errorf("fetch quote %s via %s: %w", symbol, name, err)
	}

	data.Symbol = symbol
	data.Source = name
	return data, nil
}

// account increments usage on success and always emits one usage metric.
func (g *Gateway) account(source, endpoint string, elapsed time.Duration, statusCode int, success bool) {
	g.mu.Lock()
	src := g.sources[source]
	if success {
		src.CurrentUsage++
	}
	cost := src.Cost
	g.mu.Unlock()

	g.sink.LogAPIUsage(monitoring.APIUsage{
		ID:           uuid.New().String(),
		Provider:     source,
		Endpoint:     endpoint,
		ResponseTime: elapsed,
		StatusCode:   statusCode,
		QuotaCost:    cost,
		Timestamp:    time.Now(),
	})
}

// ResetDailyUsage zeroes every source's usage counter. Invoked by the
// surrounding system on its daily cycle.
func (g *Gateway) ResetDailyUsage() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, src := range g.sources {
		src.CurrentUsage = 0
	}
}

// Usage returns a copy of every source's quota state, sorted by priority.
func (g *Gateway) Usage() []models.DataSource {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.DataSource, 0, len(g.sources))
	for _, src := range g.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DailySpend returns the accumulated cost across all sources for the current
// usage cycle.
func (g *Gateway) DailySpend() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := decimal.Zero
	for _, src := range g.sources {
		total = total.Add(src.Cost.Mul(decimal.NewFromInt(int64(src.CurrentUsage))))
	}
	return total
}
