package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"budgetblu/assets"
	"budgetblu/internal/core"
	"budgetblu/internal/events"
	"budgetblu/internal/log"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// RefreshInterval is how long a rates table is considered fresh.
	RefreshInterval = time.Hour

	fetchTimeout = 10 * time.Second
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrNoRates         = errors.New("no exchange rates available")

	// ErrRateLimited is returned when the provider answers 429.
	ErrRateLimited = errors.New("rate limit exceeded, try again later")
	// ErrProviderAuth is returned on 401/403 from the provider.
	ErrProviderAuth = errors.New("invalid provider credentials")
)

// RateCache persists rates tables across restarts.
type RateCache interface {
	SaveRates(ctx context.Context, base, payload string, at time.Time) error
	LoadRates(ctx context.Context, base string) (string, time.Time, error)
}

// providerResponse covers both response shapes the exchange-rate APIs
// use: the keyed plan returns conversion_rates, the free plan rates.
type providerResponse struct {
	ConversionRates map[string]float64 `json:"conversion_rates"`
	Rates           map[string]float64 `json:"rates"`
}

func (p providerResponse) table() map[string]float64 {
	if len(p.ConversionRates) > 0 {
		return p.ConversionRates
	}
	return p.Rates
}

// Converter holds the current USD-based rates table and refreshes it
// from the provider when stale. Conversion routes through the base:
// amount / rate[from] * rate[to].
type Converter struct {
	providerURL string
	client      *http.Client
	cache       RateCache
	bus         *events.Bus
	logger      *log.Logger
	now         func() time.Time

	group   singleflight.Group
	limiter *rate.Limiter

	mu          sync.RWMutex
	rates       map[string]float64
	lastRefresh time.Time
	fetchSeq    uint64 // guards against stale responses overwriting newer tables
}

// NewConverter builds a converter seeded from the persistent cache when
// available, else from the embedded default table. cache and bus may be
// nil.
func NewConverter(providerURL string, cache RateCache, bus *events.Bus, logger *log.Logger) *Converter {
	c := &Converter{
		providerURL: providerURL,
		client:      &http.Client{Timeout: fetchTimeout},
		cache:       cache,
		bus:         bus,
		logger:      logger.WithComponent(log.ComponentCurrency),
		now:         time.Now,
		limiter:     rate.NewLimiter(rate.Every(time.Minute), 5),
	}
	c.seed()
	return c
}

func (c *Converter) seed() {
	if c.cache != nil {
		payload, at, err := c.cache.LoadRates(context.Background(), BaseCurrency)
		if err == nil {
			var table map[string]float64
			if json.Unmarshal([]byte(payload), &table) == nil && len(table) > 0 {
				c.rates = table
				c.lastRefresh = at
				return
			}
		} else if !errors.Is(err, core.ErrNotFound) {
			c.logger.Warn("failed to load cached rates", log.FieldError, err)
		}
	}
	c.rates = embeddedRates()
	// lastRefresh stays zero so the first RefreshIfStale hits the provider.
}

func embeddedRates() map[string]float64 {
	raw, err := assets.FS.ReadFile("default_rates.json")
	if err != nil {
		return map[string]float64{BaseCurrency: 1}
	}
	var doc struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.Rates) == 0 {
		return map[string]float64{BaseCurrency: 1}
	}
	return doc.Rates
}

// Convert changes an amount in major units from one currency to another,
// rounded to two decimals. Identity conversions return the amount as is,
// zero and negative included.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	c.mu.RLock()
	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	c.mu.RUnlock()
	if !okFrom || !okTo || fromRate == 0 {
		return 0, fmt.Errorf("%w: %s or %s", ErrUnknownCurrency, from, to)
	}
	converted := amount / fromRate * toRate
	return math.Round(converted*100) / 100, nil
}

// ConvertMoney converts cents between currencies, rounding to the
// nearest cent.
func (c *Converter) ConvertMoney(m core.Money, from, to string) (core.Money, error) {
	v, err := c.Convert(m.Float64(), from, to)
	if err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromFloat(v), nil
}

// Rate returns the direct rate from one currency to another.
func (c *Converter) Rate(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	c.mu.RLock()
	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	c.mu.RUnlock()
	if !okFrom || !okTo || fromRate == 0 {
		return 0, fmt.Errorf("%w: %s or %s", ErrUnknownCurrency, from, to)
	}
	return toRate / fromRate, nil
}

// LastRefresh reports when the current table was fetched; zero for the
// embedded defaults.
func (c *Converter) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Stale reports whether the table is older than RefreshInterval.
func (c *Converter) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Sub(c.lastRefresh) > RefreshInterval
}

// RefreshIfStale fetches a new table when the current one is stale.
// Concurrent callers share a single fetch. A fetch failure leaves the
// previous table in place and returns the classified error.
func (c *Converter) RefreshIfStale(ctx context.Context) error {
	if !c.Stale() {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches the provider table unconditionally, deduplicating
// concurrent calls.
func (c *Converter) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *Converter) fetch(ctx context.Context) error {
	if c.providerURL == "" {
		return ErrNoRates
	}
	if !c.limiter.Allow() {
		return ErrRateLimited
	}

	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.providerURL, nil)
	if err != nil {
		return fmt.Errorf("build rates request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrProviderAuth
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("rates provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read rates response: %w", err)
	}
	var pr providerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return fmt.Errorf("parse rates response: %w", err)
	}
	table := pr.table()
	if len(table) == 0 {
		return fmt.Errorf("rates provider returned no rates")
	}
	table[BaseCurrency] = 1

	now := c.now()
	c.mu.Lock()
	if seq < c.fetchSeq {
		// a later fetch already landed
		c.mu.Unlock()
		return nil
	}
	c.rates = table
	c.lastRefresh = now
	c.mu.Unlock()

	if c.cache != nil {
		payload, _ := json.Marshal(table)
		if err := c.cache.SaveRates(context.Background(), BaseCurrency, string(payload), now); err != nil {
			c.logger.Warn("failed to persist rates", log.FieldError, err)
		}
	}

	c.logger.Info("exchange rates refreshed", "currencies", len(table))
	if c.bus != nil {
		c.bus.Publish(events.Event{Name: events.RatesRefreshed, At: now})
	}
	return nil
}
