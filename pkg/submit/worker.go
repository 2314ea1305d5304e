// Package submit implements the per-hash submission protocol against the
// Real-Debrid account: add the magnet, then activate it by selecting all
// files, treating the provider's capacity and rate-limit codes as control
// flow rather than failures.
package submit

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/debrid"
	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
	"github.com/Zerr0-C00L/YTS-RD/pkg/retry"
)

// Prometheus metrics for submissions.
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_submissions_total",
		Help: "Total submission attempts by outcome",
	}, []string{"outcome"})
)

// Outcome is the terminal result of one submission.
type Outcome string

const (
	// OutcomeAdded: magnet added and files selected.
	OutcomeAdded Outcome = "added"

	// OutcomeActivationFailed: magnet added but file selection failed.
	// Soft failure; the torrent still counts as added.
	OutcomeActivationFailed Outcome = "activation_failed"

	// OutcomePermanentlyFailed: submission failed with no retryable code.
	// The hash is recorded in the failure log for later replay.
	OutcomePermanentlyFailed Outcome = "permanently_failed"

	// OutcomeSkipped: nothing was submitted (empty hash or cancellation
	// before the submit step).
	OutcomeSkipped Outcome = "skipped"
)

// Submitter is the Real-Debrid surface the worker drives.
type Submitter interface {
	AddMagnet(ctx context.Context, magnet string) (string, error)
	SelectAllFiles(ctx context.Context, torrentID string) error
}

// CapacityClearer frees account capacity by cancelling all active
// torrents. Invoked on provider code 21.
type CapacityClearer interface {
	ClearActive(ctx context.Context) (int, error)
}

// FailureLog durably records permanently failed hashes.
type FailureLog interface {
	AppendFailed(id identifier.Identifier) error
}

// Config holds worker configuration.
type Config struct {
	// RateLimitRetry is the unbounded cooldown policy for code 34.
	RateLimitRetry retry.Policy

	// ItemDelay is the fixed pause after each submission, regardless of
	// outcome, to respect the provider-wide throughput limit.
	ItemDelay time.Duration

	// Sleep overrides the delay clock (tests).
	Sleep retry.SleepFunc
}

// DefaultConfig returns the production pacing: 60s rate-limit cooldown,
// 1s between items.
func DefaultConfig() Config {
	return Config{
		RateLimitRetry: retry.RateLimit(),
		ItemDelay:      1 * time.Second,
	}
}

// Worker executes the submit-then-activate protocol for one hash at a
// time. It is driven sequentially by the batch runner; it is not safe
// for concurrent use against one account.
type Worker struct {
	api      Submitter
	clearer  CapacityClearer
	failures FailureLog
	config   Config
	logger   zerolog.Logger
}

// NewWorker creates a submission worker.
func NewWorker(api Submitter, clearer CapacityClearer, failures FailureLog, cfg Config) *Worker {
	if cfg.RateLimitRetry.Delay == 0 && cfg.RateLimitRetry.MaxAttempts == 0 && cfg.RateLimitRetry.Name == "" {
		cfg.RateLimitRetry = retry.RateLimit()
	}
	return &Worker{
		api:      api,
		clearer:  clearer,
		failures: failures,
		config:   cfg,
		logger:   logging.NewLogger("submit"),
	}
}

// Submit pushes one hash through the submit-activate protocol and
// returns its outcome. The returned error is non-nil only for
// cancellation (the caller must stop without advancing) and for the
// detail behind a permanent failure.
func (w *Worker) Submit(ctx context.Context, id identifier.Identifier) (Outcome, error) {
	if id == "" {
		submissionsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, nil
	}

	// The inter-item delay applies after every attempt, success or not.
	defer w.pause(ctx)

	magnet := debrid.BuildMagnet(id.String(), "")

	torrentID, err := w.addMagnet(ctx, magnet)
	if err != nil {
		// A dead context, whether cancelled or past its deadline, means
		// the item was interrupted, not that it failed. It must not land
		// in the failure log.
		if errors.Is(err, retry.ErrCancelled) || ctx.Err() != nil {
			submissionsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
			return OutcomeSkipped, err
		}

		w.logger.Error().
			Err(err).
			Str("hash", id.String()).
			Msg("Submission permanently failed")
		if logErr := w.failures.AppendFailed(id); logErr != nil {
			w.logger.Error().Err(logErr).Str("hash", id.String()).Msg("Failed to record failure")
		}
		submissionsTotal.WithLabelValues(string(OutcomePermanentlyFailed)).Inc()
		return OutcomePermanentlyFailed, err
	}

	if err := w.activate(ctx, torrentID); err != nil {
		// Soft failure: the torrent is added, only file selection failed.
		w.logger.Warn().
			Err(err).
			Str("hash", id.String()).
			Str("torrent_id", torrentID).
			Msg("Activation failed, torrent remains added")
		submissionsTotal.WithLabelValues(string(OutcomeActivationFailed)).Inc()
		return OutcomeActivationFailed, nil
	}

	w.logger.Debug().
		Str("hash", id.String()).
		Str("torrent_id", torrentID).
		Msg("Torrent added and activated")
	submissionsTotal.WithLabelValues(string(OutcomeAdded)).Inc()
	return OutcomeAdded, nil
}

// addMagnet drives the submit step. Code 34 retries unbounded through
// the rate-limit policy; code 21 triggers a capacity clear followed by
// exactly one retried submit; anything else is permanent.
func (w *Worker) addMagnet(ctx context.Context, magnet string) (string, error) {
	var torrentID string

	err := w.config.RateLimitRetry.Do(ctx, w.config.Sleep, func() error {
		id, err := w.api.AddMagnet(ctx, magnet)
		if err == nil {
			torrentID = id
			return nil
		}

		if debrid.IsRateLimited(err) {
			w.logger.Warn().
				Dur("cooldown", w.config.RateLimitRetry.Delay).
				Msg("Rate limited, cooling down")
			return err
		}

		if debrid.IsCapacityExceeded(err) {
			id, err := w.retryAfterCapacityClear(ctx, magnet)
			if err != nil {
				return retry.Permanent(err)
			}
			torrentID = id
			return nil
		}

		return retry.Permanent(err)
	})

	return torrentID, err
}

// retryAfterCapacityClear frees capacity and retries the submit exactly
// once. A second failure of any kind is permanent.
func (w *Worker) retryAfterCapacityClear(ctx context.Context, magnet string) (string, error) {
	deleted, err := w.clearer.ClearActive(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Capacity clear failed")
		return "", err
	}
	w.logger.Warn().Int("deleted", deleted).Msg("Capacity cleared, retrying submit once")

	return w.api.AddMagnet(ctx, magnet)
}

// activate drives the file-selection step with the same single-retry
// capacity handling as the submit step.
func (w *Worker) activate(ctx context.Context, torrentID string) error {
	err := w.api.SelectAllFiles(ctx, torrentID)
	if err == nil {
		return nil
	}

	if debrid.IsCapacityExceeded(err) {
		deleted, clearErr := w.clearer.ClearActive(ctx)
		if clearErr != nil {
			w.logger.Error().Err(clearErr).Msg("Capacity clear failed during activation")
			return err
		}
		w.logger.Warn().Int("deleted", deleted).Msg("Capacity cleared, retrying activation once")
		return w.api.SelectAllFiles(ctx, torrentID)
	}

	return err
}

// pause applies the fixed inter-item delay.
func (w *Worker) pause(ctx context.Context) {
	sleep := w.config.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	if w.config.ItemDelay > 0 {
		_ = sleep(ctx, w.config.ItemDelay)
	}
}
