// Package retry implements fixed-delay retry policies for remote calls.
//
// Two policies cover the pipeline: a bounded policy for catalog page
// fetches and an unbounded policy for provider rate-limit cooldowns. Both
// are plain values so callers inject them instead of hardcoding loops,
// and the sleep is injectable for tests with a fake clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_retries_total",
		Help: "Total number of retry attempts by policy",
	}, []string{"policy"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by policy",
	}, []string{"policy"})

	retrySleepSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytsrd_retry_sleep_seconds_total",
		Help: "Total time spent sleeping between retries by policy",
	}, []string{"policy"})
)

// Common errors returned by Do.
var (
	// ErrExhausted is returned when all attempts of a bounded policy fail.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the context is cancelled during a delay.
	ErrCancelled = errors.New("retry cancelled")
)

// Policy describes a fixed-delay retry schedule.
type Policy struct {
	// Name labels the policy in logs and metrics.
	Name string

	// MaxAttempts is the total number of attempts including the first.
	// Zero means unbounded: retry until success, permanent error, or
	// context cancellation.
	MaxAttempts int

	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// PageFetch returns the bounded policy for catalog page fetches:
// 5 attempts, 1s apart.
func PageFetch() Policy {
	return Policy{Name: "page_fetch", MaxAttempts: 5, Delay: 1 * time.Second}
}

// RateLimit returns the unbounded policy for provider rate-limit
// cooldowns: retry forever with a 60s delay. The only unbounded retry in
// the system; it must be driven with a cancellable context.
func RateLimit() Policy {
	return Policy{Name: "rate_limit", MaxAttempts: 0, Delay: 60 * time.Second}
}

// Unbounded reports whether the policy retries without an attempt cap.
func (p Policy) Unbounded() bool {
	return p.MaxAttempts <= 0
}

// SleepFunc waits for d or returns early with the context error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by the real clock.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without further
// attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a permanent error, the policy's
// attempts are exhausted, or ctx is cancelled during a delay. A nil sleep
// uses the real clock.
func (p Policy) Do(ctx context.Context, sleep SleepFunc, fn func() error) error {
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; p.Unbounded() || attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("policy", p.Name).
					Int("attempt", attempt).
					Msg("Succeeded after retry")
			}
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err

		if !p.Unbounded() && attempt >= p.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(p.Name).Inc()
		retrySleepSeconds.WithLabelValues(p.Name).Add(p.Delay.Seconds())

		log.Debug().
			Str("policy", p.Name).
			Int("attempt", attempt).
			Dur("delay", p.Delay).
			Err(err).
			Msg("Retrying after delay")

		if err := sleep(ctx, p.Delay); err != nil {
			log.Warn().
				Str("policy", p.Name).
				Int("attempt", attempt).
				Msg("Context cancelled during retry delay")
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}

	retryExhaustedTotal.WithLabelValues(p.Name).Inc()
	log.Warn().
		Str("policy", p.Name).
		Int("max_attempts", p.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, p.MaxAttempts, lastErr)
}
