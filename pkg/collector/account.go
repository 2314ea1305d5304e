package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/debrid"
	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
	"github.com/Zerr0-C00L/YTS-RD/pkg/retry"
	"github.com/Zerr0-C00L/YTS-RD/pkg/state"
)

// TorrentLister is the account listing side of the Real-Debrid client.
type TorrentLister interface {
	Torrents(ctx context.Context, page int, activeOnly bool) ([]debrid.TorrentItem, error)
}

// AccountCache is a pre-fetched account hash set. A hit is trusted
// verbatim; Get returns state.ErrCacheMiss when the cache is cold.
type AccountCache interface {
	Get(ctx context.Context) (*identifier.Set, error)
	Set(ctx context.Context, set *identifier.Set) error
}

// AccountConfig holds account collection configuration.
type AccountConfig struct {
	// Retry is the bounded per-page policy for the listing walk. A
	// transient page error is retried before it aborts the collection.
	Retry retry.Policy

	// Sleep overrides the retry delay clock (tests).
	Sleep retry.SleepFunc
}

// Account collects the hash set of the remote account. Unlike the
// catalog side there is no fixed page count: the walk is sequential and
// terminates on the first empty page.
type Account struct {
	lister TorrentLister
	config AccountConfig
	caches []AccountCache
	logger zerolog.Logger
}

// NewAccount creates an account collector. Caches are consulted in
// order; the first hit skips the network walk entirely.
func NewAccount(lister TorrentLister, cfg AccountConfig, caches ...AccountCache) *Account {
	if cfg.Retry.MaxAttempts == 0 && cfg.Retry.Delay == 0 {
		cfg.Retry = retry.PageFetch()
	}
	return &Account{
		lister: lister,
		config: cfg,
		caches: caches,
		logger: logging.NewLogger("collector"),
	}
}

// Collect returns the account hash set and whether it was served from a
// cache.
func (a *Account) Collect(ctx context.Context) (*identifier.Set, bool, error) {
	for _, cache := range a.caches {
		set, err := cache.Get(ctx)
		if err == nil {
			a.logger.Info().Int("hashes", set.Len()).Msg("Account set loaded from cache")
			return set, true, nil
		}
		if !errors.Is(err, state.ErrCacheMiss) {
			a.logger.Warn().Err(err).Msg("Account cache read failed, falling back")
		}
	}

	start := time.Now()
	set := identifier.NewSet()

	for page := 1; ; page++ {
		items, err := a.fetchPage(ctx, page)
		if err != nil {
			// The account set must be complete or the reconciler would
			// resubmit everything the missing pages hold, so a page that
			// fails all retries aborts the collection.
			return nil, false, fmt.Errorf("account listing page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			set.Add(item.Hash)
		}

		a.logger.Debug().
			Int("page", page).
			Int("items", len(items)).
			Int("hashes", set.Len()).
			Msg("Account page fetched")
	}

	collectionDuration.WithLabelValues("account").Observe(time.Since(start).Seconds())
	a.logger.Info().
		Int("hashes", set.Len()).
		Dur("duration", time.Since(start)).
		Msg("Account collection complete")

	// Warm the caches for the next invocation. Best effort only.
	for _, cache := range a.caches {
		if err := cache.Set(ctx, set); err != nil {
			a.logger.Warn().Err(err).Msg("Account cache write failed")
		}
	}

	return set, false, nil
}

// fetchPage fetches one listing page through the bounded retry policy.
func (a *Account) fetchPage(ctx context.Context, page int) ([]debrid.TorrentItem, error) {
	var items []debrid.TorrentItem
	err := a.config.Retry.Do(ctx, a.config.Sleep, func() error {
		var err error
		items, err = a.lister.Torrents(ctx, page, false)
		return err
	})
	return items, err
}
