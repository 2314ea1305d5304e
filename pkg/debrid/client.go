// Package debrid provides the Real-Debrid REST client used by the
// submission pipeline: account torrent listing, magnet submission, file
// selection, deletion, and the capacity-clear remediation.
package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
)

// Prometheus metrics for Real-Debrid operations.
var (
	debridRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_debrid_requests_total",
		Help: "Total Real-Debrid requests by operation and result",
	}, []string{"operation", "result"})

	debridRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytsrd_debrid_request_duration_seconds",
		Help:    "Real-Debrid request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	capacityClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytsrd_capacity_clears_total",
		Help: "Total capacity-clear invocations (all active torrents deleted)",
	})
)

// DefaultBaseURL is the public Real-Debrid REST endpoint.
const DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"

// defaultListPageSize is the page size for account torrent listings.
const defaultListPageSize = 2500

// Config holds the Real-Debrid client configuration.
type Config struct {
	// BaseURL of the REST API (default: DefaultBaseURL).
	BaseURL string

	// Token is the operator's bearer token. Required. Never logged and
	// never written to persisted state.
	Token string

	// HTTPTimeout per request.
	HTTPTimeout time.Duration

	// ListPageSize for account torrent listings.
	ListPageSize int
}

// Client talks to the Real-Debrid REST API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// TorrentItem is one entry of the account torrent listing.
type TorrentItem struct {
	ID     string `json:"id"`
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// addMagnetResponse is the addMagnet response body. On failure the id is
// absent and error/error_code are set.
type addMagnetResponse struct {
	ID        string `json:"id"`
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

// apiErrorResponse is the generic error body of non-2xx responses.
type apiErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

// New creates a Real-Debrid client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = defaultListPageSize
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		config:     cfg,
		logger:     logging.NewLogger("debrid"),
	}, nil
}

// ListPageSize returns the configured account listing page size.
func (c *Client) ListPageSize() int {
	return c.config.ListPageSize
}

// Torrents fetches one page of the account torrent listing. An empty
// slice signals the end of the listing. With activeOnly set the listing
// is restricted to currently active torrents.
func (c *Client) Torrents(ctx context.Context, page int, activeOnly bool) ([]TorrentItem, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.config.ListPageSize))
	params.Set("page", strconv.Itoa(page))
	if activeOnly {
		params.Set("filter", "active")
	}

	start := time.Now()
	defer func() {
		debridRequestDuration.WithLabelValues("torrents").Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, http.MethodGet, "/torrents?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debridRequestsTotal.WithLabelValues("torrents", "network_error").Inc()
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	defer resp.Body.Close()

	// 204 means the page is past the end of the listing.
	if resp.StatusCode == http.StatusNoContent {
		debridRequestsTotal.WithLabelValues("torrents", "ok").Inc()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		debridRequestsTotal.WithLabelValues("torrents", strconv.Itoa(resp.StatusCode)).Inc()
		return nil, c.decodeError("list torrents", resp)
	}

	var items []TorrentItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode torrent listing: %w", err)
	}

	debridRequestsTotal.WithLabelValues("torrents", "ok").Inc()
	return items, nil
}

// AddMagnet submits a magnet link and returns the new torrent id.
// Provider failures surface as *APIError; an id-less response without a
// recognized code returns ErrNoTorrentID.
func (c *Client) AddMagnet(ctx context.Context, magnet string) (string, error) {
	form := url.Values{}
	form.Set("magnet", magnet)

	start := time.Now()
	defer func() {
		debridRequestDuration.WithLabelValues("add_magnet").Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/addMagnet", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debridRequestsTotal.WithLabelValues("add_magnet", "network_error").Inc()
		return "", fmt.Errorf("add magnet: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read addMagnet response: %w", err)
	}

	var result addMagnetResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return "", fmt.Errorf("decode addMagnet response: %w", err)
		}
	}

	if result.ErrorCode != 0 {
		debridRequestsTotal.WithLabelValues("add_magnet", "provider_error").Inc()
		return "", &APIError{
			Code:       result.ErrorCode,
			Message:    result.Error,
			HTTPStatus: resp.StatusCode,
		}
	}

	if result.ID == "" {
		debridRequestsTotal.WithLabelValues("add_magnet", "no_id").Inc()
		return "", fmt.Errorf("add magnet (http %d): %w", resp.StatusCode, ErrNoTorrentID)
	}

	debridRequestsTotal.WithLabelValues("add_magnet", "ok").Inc()
	return result.ID, nil
}

// SelectAllFiles marks every file of a torrent for download, activating
// it. Provider failures surface as *APIError.
func (c *Client) SelectAllFiles(ctx context.Context, torrentID string) error {
	form := url.Values{}
	form.Set("files", "all")

	start := time.Now()
	defer func() {
		debridRequestDuration.WithLabelValues("select_files").Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/selectFiles/"+torrentID, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debridRequestsTotal.WithLabelValues("select_files", "network_error").Inc()
		return fmt.Errorf("select files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		debridRequestsTotal.WithLabelValues("select_files", "ok").Inc()
		return nil
	}

	debridRequestsTotal.WithLabelValues("select_files", strconv.Itoa(resp.StatusCode)).Inc()
	return c.decodeError("select files", resp)
}

// Delete removes a torrent from the account.
func (c *Client) Delete(ctx context.Context, torrentID string) error {
	start := time.Now()
	defer func() {
		debridRequestDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, http.MethodDelete, "/torrents/delete/"+torrentID, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debridRequestsTotal.WithLabelValues("delete", "network_error").Inc()
		return fmt.Errorf("delete torrent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		debridRequestsTotal.WithLabelValues("delete", "ok").Inc()
		return nil
	}

	debridRequestsTotal.WithLabelValues("delete", strconv.Itoa(resp.StatusCode)).Inc()
	return c.decodeError("delete torrent", resp)
}

// ClearActive deletes all currently active torrents to free account
// capacity. Returns the number of torrents deleted. Used as the code-21
// remediation; a partial failure aborts with the count so far.
func (c *Client) ClearActive(ctx context.Context) (int, error) {
	capacityClearsTotal.Inc()
	c.logger.Warn().Msg("Capacity clear: deleting all active torrents")

	// Deleting shrinks the active listing, so always re-fetch page 1
	// until it comes back empty.
	deleted := 0
	for {
		items, err := c.Torrents(ctx, 1, true)
		if err != nil {
			return deleted, fmt.Errorf("list active torrents: %w", err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if err := c.Delete(ctx, item.ID); err != nil {
				return deleted, fmt.Errorf("delete active torrent %s: %w", item.ID, err)
			}
			deleted++
		}
	}

	c.logger.Info().Int("deleted", deleted).Msg("Capacity clear complete")
	return deleted, nil
}

// newRequest builds an authenticated API request.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	return req, nil
}

// decodeError turns a non-2xx response into an *APIError when the body
// carries a provider code, or a plain error otherwise.
func (c *Client) decodeError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr apiErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode != 0 {
		return &APIError{
			Code:       apiErr.ErrorCode,
			Message:    apiErr.Error,
			HTTPStatus: resp.StatusCode,
		}
	}
	return fmt.Errorf("%s: unexpected status %d", operation, resp.StatusCode)
}
