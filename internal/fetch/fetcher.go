// Package fetch is the built-in scraping collaborator: it refreshes
// configured price, benchmark, and currency endpoints over HTTP, pacing
// consecutive requests per host so no remote gets hammered. The orchestration
// core only sees it through the refresh.Scraper interface.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/pacing"
	"github.com/rcollins/quotesync/internal/refresh"
)

// Source is one HTTP endpoint yielding a single numeric value.
type Source struct {
	ID       int64
	Name     string
	URL      string
	JSONPath string // dot-separated path to the value in the response body
}

// Currency is the exchange-rate endpoint; a zero URL disables it.
type Currency struct {
	URL      string
	JSONPath string
}

// Sink receives fetched values. Persistence of domain records lives outside
// this package.
type Sink interface {
	StorePrice(id int64, value float64, at time.Time) error
	StoreBenchmark(id int64, value float64, at time.Time) error
	StoreCurrencyRate(value float64, at time.Time) error
}

// Fetcher implements refresh.Scraper over a fixed set of sources.
type Fetcher struct {
	prices     []Source
	benchmarks []Source
	currency   Currency
	sink       Sink
	client     *http.Client
	log        *logger.Logger

	// sleep is swappable in tests so pacing does not slow them down.
	sleep func(time.Duration)
}

// New creates a fetcher. sink may be nil, in which case values are fetched
// and discarded (useful for connectivity checks).
func New(prices, benchmarks []Source, currency Currency, sink Sink, log *logger.Logger) *Fetcher {
	return &Fetcher{
		prices:     prices,
		benchmarks: benchmarks,
		currency:   currency,
		sink:       sink,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:   log,
		sleep: time.Sleep,
	}
}

// RunFull fetches every configured source once.
func (f *Fetcher) RunFull(ctx context.Context, opts refresh.RunOptions) (refresh.RunSummary, error) {
	profile := pacing.ResolveProfile(opts.DelayProfile)

	var summary refresh.RunSummary
	prevHost := ""

	for _, src := range f.prices {
		if err := f.fetchOne(ctx, src, profile, &prevHost, f.storePrice); err != nil {
			f.log.Warn("price fetch failed",
				logger.Field{Key: "source", Value: src.Name},
				logger.Field{Key: "id", Value: src.ID})
			summary.FailedPriceIDs = append(summary.FailedPriceIDs, src.ID)
			continue
		}
		summary.PricesUpdated++
	}

	for _, src := range f.benchmarks {
		if err := f.fetchOne(ctx, src, profile, &prevHost, f.storeBenchmark); err != nil {
			f.log.Warn("benchmark fetch failed",
				logger.Field{Key: "source", Value: src.Name},
				logger.Field{Key: "id", Value: src.ID})
			summary.FailedBenchmarkIDs = append(summary.FailedBenchmarkIDs, src.ID)
			continue
		}
		summary.BenchmarksUpdated++
	}

	summary.CurrencyOK = f.fetchCurrency(ctx, profile, &prevHost)
	return summary, nil
}

// RetryFailed refetches only the still-failing subset.
func (f *Fetcher) RetryFailed(ctx context.Context, set refresh.RetrySet, opts refresh.RetryOptions) (refresh.RetryResult, error) {
	profile := pacing.ResolveProfile(opts.DelayProfile)

	var result refresh.RetryResult
	prevHost := ""

	for _, src := range f.selectSources(f.prices, set.PriceIDs) {
		if err := f.fetchOne(ctx, src, profile, &prevHost, f.storePrice); err != nil {
			result.FailedPriceIDs = append(result.FailedPriceIDs, src.ID)
		}
	}
	for _, src := range f.selectSources(f.benchmarks, set.BenchmarkIDs) {
		if err := f.fetchOne(ctx, src, profile, &prevHost, f.storeBenchmark); err != nil {
			result.FailedBenchmarkIDs = append(result.FailedBenchmarkIDs, src.ID)
		}
	}

	result.CurrencyOK = true
	if set.Currency {
		result.CurrencyOK = f.fetchCurrency(ctx, profile, &prevHost)
	}
	return result, nil
}

func (f *Fetcher) selectSources(all []Source, ids []int64) []Source {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []Source
	for _, src := range all {
		if _, ok := wanted[src.ID]; ok {
			out = append(out, src)
		}
	}
	return out
}

// fetchOne paces, fetches, parses, and stores a single source value.
func (f *Fetcher) fetchOne(ctx context.Context, src Source, profile pacing.Profile, prevHost *string, store func(Source, float64) error) error {
	host := pacing.HostOf(src.URL)
	if d := pacing.Delay(*prevHost, host, profile); d > 0 {
		f.sleep(d)
	}
	*prevHost = host

	value, err := f.fetchValue(ctx, src.URL, src.JSONPath)
	if err != nil {
		return err
	}
	return store(src, value)
}

func (f *Fetcher) fetchCurrency(ctx context.Context, profile pacing.Profile, prevHost *string) bool {
	if f.currency.URL == "" {
		return true
	}

	host := pacing.HostOf(f.currency.URL)
	if d := pacing.Delay(*prevHost, host, profile); d > 0 {
		f.sleep(d)
	}
	*prevHost = host

	value, err := f.fetchValue(ctx, f.currency.URL, f.currency.JSONPath)
	if err != nil {
		f.log.Warn("currency fetch failed")
		return false
	}
	if f.sink != nil {
		if err := f.sink.StoreCurrencyRate(value, time.Now()); err != nil {
			f.log.Error("failed to store currency rate", err)
			return false
		}
	}
	return true
}

// fetchValue GETs url and extracts the numeric value at jsonPath.
func (f *Fetcher) fetchValue(ctx context.Context, url, jsonPath string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read body: %w", err)
	}

	value, err := jsonparser.GetFloat(body, splitPath(jsonPath)...)
	if err != nil {
		return 0, fmt.Errorf("no numeric value at %q: %w", jsonPath, err)
	}
	return value, nil
}

func (f *Fetcher) storePrice(src Source, value float64) error {
	if f.sink == nil {
		return nil
	}
	return f.sink.StorePrice(src.ID, value, time.Now())
}

func (f *Fetcher) storeBenchmark(src Source, value float64) error {
	if f.sink == nil {
		return nil
	}
	return f.sink.StoreBenchmark(src.ID, value, time.Now())
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
