// Package catalog provides the YTS listing client: total-count probe,
// single-page fetch with bounded retry, and quality-variant selection.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
	"github.com/Zerr0-C00L/YTS-RD/pkg/retry"
)

// Prometheus metrics for catalog operations.
var (
	catalogPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_catalog_pages_total",
		Help: "Total catalog page fetches by result",
	}, []string{"result"})

	catalogRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ytsrd_catalog_request_duration_seconds",
		Help:    "Catalog listing request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	catalogHashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytsrd_catalog_hashes_total",
		Help: "Total torrent hashes emitted after quality selection",
	})
)

// DefaultBaseURL is the public YTS API endpoint.
const DefaultBaseURL = "https://yts.lt/api/v2"

// listPageSize is the YTS maximum page size.
const listPageSize = 50

// Config holds the catalog client configuration.
type Config struct {
	// BaseURL of the YTS API (default: DefaultBaseURL).
	BaseURL string

	// MinimumRating filters the listing (0 for all movies).
	MinimumRating float64

	// HTTPTimeout per request.
	HTTPTimeout time.Duration

	// Retry is the bounded page-fetch policy.
	Retry retry.Policy

	// Sleep overrides the retry delay clock (tests).
	Sleep retry.SleepFunc
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		HTTPTimeout: 30 * time.Second,
		Retry:       retry.PageFetch(),
	}
}

// Client fetches paginated movie listings from YTS.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a catalog client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 && cfg.Retry.Delay == 0 {
		cfg.Retry = retry.PageFetch()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		config:     cfg,
		logger:     logging.NewLogger("catalog"),
	}
}

// TotalCount returns the number of movies in the catalog via a limit=1
// probe.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	params := url.Values{}
	params.Set("limit", "1")

	var resp listResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return 0, fmt.Errorf("probe movie count: %w", err)
	}
	if resp.Status != "ok" {
		return 0, fmt.Errorf("probe movie count: status %q: %s", resp.Status, resp.StatusMessage)
	}
	return resp.Data.MovieCount, nil
}

// PageCount returns the number of listing pages for the current catalog
// size at the fixed page size.
func (c *Client) PageCount(ctx context.Context) (int, error) {
	count, err := c.TotalCount(ctx)
	if err != nil {
		return 0, err
	}
	return (count + listPageSize - 1) / listPageSize, nil
}

// FetchPage fetches one listing page and returns the hashes of the
// preferred quality variants on it. Retries up to the configured policy
// on errors and empty responses; after exhaustion it logs the terminal
// failure and returns an empty set together with the error, so a failed
// page degrades collection instead of aborting it.
func (c *Client) FetchPage(ctx context.Context, page, totalPages int) (*identifier.Set, error) {
	if page < 1 {
		return nil, fmt.Errorf("fetch page: page %d out of range", page)
	}

	set := identifier.NewSet()

	err := c.config.Retry.Do(ctx, c.config.Sleep, func() error {
		movies, err := c.fetchMoviesOnce(ctx, page)
		if err != nil {
			return err
		}
		if len(movies) == 0 {
			return fmt.Errorf("page %d: empty response", page)
		}

		for _, movie := range movies {
			for _, t := range PreferredTorrents(movie) {
				set.Add(t.Hash)
			}
		}
		return nil
	})

	if err != nil {
		catalogPagesTotal.WithLabelValues("failed").Inc()
		c.logger.Error().
			Err(err).
			Int("page", page).
			Int("total_pages", totalPages).
			Msg("Page fetch failed after all retries")
		return identifier.NewSet(), err
	}

	catalogPagesTotal.WithLabelValues("ok").Inc()
	catalogHashesTotal.Add(float64(set.Len()))
	c.logger.Info().
		Int("page", page).
		Int("total_pages", totalPages).
		Int("hashes", set.Len()).
		Msg("Page fetched")

	return set, nil
}

// fetchMoviesOnce performs a single listing request without retry.
func (c *Client) fetchMoviesOnce(ctx context.Context, page int) ([]Movie, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(listPageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("minimum_rating", strconv.FormatFloat(c.config.MinimumRating, 'f', -1, 64))
	params.Set("sort_by", "date_added")
	params.Set("order_by", "desc")

	var resp listResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("page %d: status %q: %s", page, resp.Status, resp.StatusMessage)
	}
	return resp.Data.Movies, nil
}

// get performs a GET against the list_movies endpoint and decodes the
// envelope.
func (c *Client) get(ctx context.Context, params url.Values, out *listResponse) error {
	start := time.Now()
	defer func() {
		catalogRequestDuration.Observe(time.Since(start).Seconds())
	}()

	endpoint := c.config.BaseURL + "/list_movies.json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("list_movies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list_movies: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}
	return nil
}
