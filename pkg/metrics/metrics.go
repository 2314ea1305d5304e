// Package metrics provides the centralized Prometheus registry reference
// for the pipeline. All metrics are defined in their respective packages
// (catalog, debrid, collector, submit, batch, state) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Catalog Metrics (pkg/catalog):
//   - ytsrd_catalog_pages_total{result} (Counter): Page fetches by result (ok, failed)
//   - ytsrd_catalog_request_duration_seconds (Histogram): Listing request duration
//   - ytsrd_catalog_hashes_total (Counter): Hashes emitted after quality selection
//
// Real-Debrid Metrics (pkg/debrid):
//   - ytsrd_debrid_requests_total{operation, result} (Counter): Requests by operation and result
//   - ytsrd_debrid_request_duration_seconds{operation} (Histogram): Request duration
//   - ytsrd_capacity_clears_total (Counter): Capacity-clear invocations
//
// Collection Metrics (pkg/collector):
//   - ytsrd_collection_duration_seconds{source} (Histogram): Full collection duration (catalog, account)
//   - ytsrd_collection_failed_pages_total (Counter): Pages that yielded nothing after all retries
//
// Retry Metrics (pkg/retry):
//   - ytsrd_retries_total{policy} (Counter): Retry attempts by policy
//   - ytsrd_retry_exhausted_total{policy} (Counter): Operations that exhausted their attempts
//   - ytsrd_retry_sleep_seconds_total{policy} (Counter): Cumulative retry sleep time
//
// Submission Metrics (pkg/submit):
//   - ytsrd_submissions_total{outcome} (Counter): Submissions by outcome
//     (added, activation_failed, permanently_failed, skipped)
//
// Batch Metrics (pkg/batch):
//   - ytsrd_batch_duration_seconds (Histogram): Duration of one batch run
//   - ytsrd_batch_cursor (Gauge): Current position in the pending queue
//
// Cache Metrics (pkg/state):
//   - ytsrd_account_cache_hits_total (Counter): Redis account-cache hits
//   - ytsrd_account_cache_misses_total (Counter): Redis account-cache misses
//
// Example Prometheus Queries:
//
//   # Submission success rate
//   sum(rate(ytsrd_submissions_total{outcome="added"}[1h])) /
//   sum(rate(ytsrd_submissions_total[1h]))
//
//   # Catalog page failure rate
//   rate(ytsrd_catalog_pages_total{result="failed"}[1h])
//
//   # Time lost to rate-limit cooldowns
//   rate(ytsrd_retry_sleep_seconds_total{policy="rate-limit"}[1h])
//
//   # Queue progress
//   ytsrd_batch_cursor
