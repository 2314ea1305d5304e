// Package batch drives the pending queue through the submission worker:
// strictly sequential, cursor-checkpointed, resumable across process
// restarts.
//
// The sequential design is deliberate. The account API enforces a global
// active-torrent cap and a global rate limit; parallel submissions would
// race on capacity clears and amplify rate-limit violations.
package batch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
	"github.com/Zerr0-C00L/YTS-RD/pkg/submit"
)

// Prometheus metrics for batch runs.
var (
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ytsrd_batch_duration_seconds",
		Help:    "Duration of one batch run",
		Buckets: []float64{10, 60, 300, 1800, 7200, 21600},
	})

	batchCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytsrd_batch_cursor",
		Help: "Current position in the pending queue",
	})
)

// Worker processes one pending hash.
type Worker interface {
	Submit(ctx context.Context, id identifier.Identifier) (submit.Outcome, error)
}

// Checkpointer persists and clears run progress. Satisfied by
// *state.Store.
type Checkpointer interface {
	SaveCursor(cursor int) error
	DeleteCursor() error
	DeletePending() error
	DeleteAccountCache() error
}

// Config holds batch runner configuration.
type Config struct {
	// BatchSize caps the number of submissions per invocation.
	BatchSize int

	// CheckpointEvery is the cursor persist interval in items. On a
	// crash at most this many attempts are re-executed after restart.
	CheckpointEvery int
}

// DefaultConfig returns the production batch parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:       10000,
		CheckpointEvery: 50,
	}
}

// Summary tallies one batch run.
type Summary struct {
	Processed        int
	Added            int
	ActivationFailed int
	Failed           int
	Skipped          int

	// Cursor is the persisted resume position after the run.
	Cursor int

	// Completed reports whether the whole pending queue is exhausted
	// and the run state was cleaned up.
	Completed bool

	// Cancelled reports whether the run stopped on context
	// cancellation with the cursor persisted.
	Cancelled bool
}

// Runner executes one batch over the pending queue.
type Runner struct {
	worker Worker
	store  Checkpointer
	config Config
	logger zerolog.Logger
}

// NewRunner creates a batch runner.
func NewRunner(worker Worker, store Checkpointer, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 50
	}
	return &Runner{
		worker: worker,
		store:  store,
		config: cfg,
		logger: logging.NewLogger("batch"),
	}
}

// Run processes pending[startCursor:min(startCursor+BatchSize, len)] in
// index order, checkpointing the cursor every CheckpointEvery items and
// unconditionally at the end. On completion of the whole queue the
// cursor and pending files are removed; otherwise both stay in place for
// the next invocation.
func (r *Runner) Run(ctx context.Context, pending []identifier.Identifier, startCursor int) (Summary, error) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	summary := Summary{Cursor: startCursor}

	if startCursor >= len(pending) {
		return r.finish(summary, len(pending))
	}

	end := startCursor + r.config.BatchSize
	if end > len(pending) {
		end = len(pending)
	}

	r.logger.Info().
		Int("cursor", startCursor).
		Int("batch_end", end).
		Int("pending_total", len(pending)).
		Msg("Starting batch")

	cursor := startCursor
	for cursor < end {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		outcome, err := r.worker.Submit(ctx, pending[cursor])
		if outcome == submit.OutcomeSkipped && err != nil {
			// Cancellation inside the worker: the item was not
			// attempted to completion, resume from here next run.
			summary.Cancelled = true
			break
		}

		cursor++
		summary.Processed++
		switch outcome {
		case submit.OutcomeAdded:
			summary.Added++
		case submit.OutcomeActivationFailed:
			summary.ActivationFailed++
		case submit.OutcomePermanentlyFailed:
			summary.Failed++
		case submit.OutcomeSkipped:
			summary.Skipped++
		}

		if (cursor-startCursor)%r.config.CheckpointEvery == 0 {
			if err := r.store.SaveCursor(cursor); err != nil {
				r.logger.Error().Err(err).Int("cursor", cursor).Msg("Checkpoint failed")
			} else {
				batchCursor.Set(float64(cursor))
				r.logger.Info().
					Int("cursor", cursor).
					Int("pending_total", len(pending)).
					Msg("Checkpoint")
			}
		}
	}

	summary.Cursor = cursor
	if err := r.store.SaveCursor(cursor); err != nil {
		return summary, err
	}
	batchCursor.Set(float64(cursor))

	// Any successful submission changed the account, so a cached account
	// listing no longer matches it and the next sync must walk fresh.
	if summary.Added+summary.ActivationFailed > 0 {
		if err := r.store.DeleteAccountCache(); err != nil {
			r.logger.Error().Err(err).Msg("Account cache invalidation failed")
		}
	}

	if summary.Cancelled {
		r.logger.Warn().
			Int("cursor", cursor).
			Msg("Batch cancelled, cursor persisted")
		return summary, ctx.Err()
	}

	return r.finish(summary, len(pending))
}

// finish cleans up the run state when the queue is exhausted and logs
// the tally.
func (r *Runner) finish(summary Summary, pendingLen int) (Summary, error) {
	if summary.Cursor >= pendingLen {
		if err := r.store.DeleteCursor(); err != nil {
			return summary, err
		}
		if err := r.store.DeletePending(); err != nil {
			return summary, err
		}
		summary.Completed = true
	}

	r.logger.Info().
		Int("processed", summary.Processed).
		Int("added", summary.Added).
		Int("activation_failed", summary.ActivationFailed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("cursor", summary.Cursor).
		Bool("completed", summary.Completed).
		Msg("Batch finished")

	return summary, nil
}
