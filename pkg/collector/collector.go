// Package collector drives bulk retrieval of the two identifier sets:
// a parallel fan-out over catalog pages and a sequential walk of the
// account torrent listing.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
)

// Prometheus metrics for collection runs.
var (
	collectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytsrd_collection_duration_seconds",
		Help:    "Duration of a full identifier collection by source",
		Buckets: []float64{1, 5, 15, 60, 300, 900},
	}, []string{"source"})

	collectionFailedPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytsrd_collection_failed_pages_total",
		Help: "Catalog pages that yielded no identifiers after all retries",
	})
)

// PageFetcher fetches one catalog page of identifiers. A page that fails
// all retries returns an empty set together with the error.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, totalPages int) (*identifier.Set, error)
}

// Config holds catalog collection configuration.
type Config struct {
	// MaxConcurrency is the number of parallel page fetches.
	MaxConcurrency int
}

// DefaultConfig returns safe collection defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 10}
}

// Catalog collects the deduplicated hash set of a catalog page range via
// a worker pool.
type Catalog struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewCatalog creates a catalog collector.
func NewCatalog(fetcher PageFetcher, cfg Config) *Catalog {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	return &Catalog{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("collector"),
	}
}

// pageResult carries one fetched page to the aggregation point.
type pageResult struct {
	page int
	set  *identifier.Set
	err  error
}

// Collect fetches pages [startPage, endPage] concurrently and returns the
// deduplicated union plus the list of pages that failed all retries.
// Failed pages contribute empty subsets; collection proceeds regardless
// (re-running picks up what a flaky page missed), so the error return is
// reserved for an invalid page range.
func (c *Catalog) Collect(ctx context.Context, startPage, endPage, totalPages int) (*identifier.Set, []int, error) {
	start := time.Now()
	defer func() {
		collectionDuration.WithLabelValues("catalog").Observe(time.Since(start).Seconds())
	}()

	result := identifier.NewSet()
	if endPage < startPage {
		return result, nil, nil
	}

	c.logger.Info().
		Int("start_page", startPage).
		Int("end_page", endPage).
		Int("total_pages", totalPages).
		Int("concurrency", c.config.MaxConcurrency).
		Msg("Starting catalog collection")

	pageCount := endPage - startPage + 1
	pageQueue := make(chan int, pageCount)
	results := make(chan pageResult, pageCount)

	for page := startPage; page <= endPage; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < c.config.MaxConcurrency; i++ {
		wg.Add(1)
		go c.worker(ctx, totalPages, pageQueue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single aggregation point: only this loop touches the result set.
	var failedPages []int
	fetched := 0
	for res := range results {
		if res.err != nil {
			failedPages = append(failedPages, res.page)
			collectionFailedPages.Inc()
			continue
		}
		result.Union(res.set)
		fetched++

		if fetched%50 == 0 {
			c.logger.Info().
				Int("fetched", fetched).
				Int("pages", pageCount).
				Int("hashes", result.Len()).
				Msg("Collection progress")
		}
	}

	if len(failedPages) > 0 {
		c.logger.Warn().
			Ints("failed_pages", failedPages).
			Msg("Collection incomplete: some pages yielded no identifiers")
	}

	c.logger.Info().
		Int("fetched", fetched).
		Int("failed", len(failedPages)).
		Int("hashes", result.Len()).
		Dur("duration", time.Since(start)).
		Msg("Catalog collection complete")

	return result, failedPages, nil
}

// worker drains the page queue. Page failures are forwarded, not fatal.
func (c *Catalog) worker(ctx context.Context, totalPages int, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for page := range pageQueue {
		select {
		case <-ctx.Done():
			results <- pageResult{page: page, err: ctx.Err()}
			continue
		default:
		}

		set, err := c.fetcher.FetchPage(ctx, page, totalPages)
		results <- pageResult{page: page, set: set, err: err}
	}
}
