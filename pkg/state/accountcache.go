package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
)

// Prometheus metrics for the Redis account cache.
var (
	accountCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytsrd_account_cache_hits_total",
		Help: "Account-hash cache hits",
	})

	accountCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytsrd_account_cache_misses_total",
		Help: "Account-hash cache misses",
	})
)

// redisKeyAccountHashes stores the cached account hash set.
const redisKeyAccountHashes = "ytsrd:account:hashes"

// DefaultAccountCacheTTL bounds how long a cached account listing is
// trusted before a fresh collection walk.
const DefaultAccountCacheTTL = 6 * time.Hour

// AccountCache is a Redis-backed cache of the account hash set, shared
// across invocations (scheduled runs on different hosts hit the same
// cache).
type AccountCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewAccountCache creates an account cache. A non-positive TTL uses
// DefaultAccountCacheTTL.
func NewAccountCache(redisClient *redis.Client, ttl time.Duration) *AccountCache {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultAccountCacheTTL
	}
	return &AccountCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("account-cache"),
	}
}

// Get retrieves the cached account hash set. Returns ErrCacheMiss when
// the key is absent or expired.
func (c *AccountCache) Get(ctx context.Context) (*identifier.Set, error) {
	data, err := c.redis.Get(ctx, redisKeyAccountHashes).Bytes()
	if err != nil {
		if err == redis.Nil {
			accountCacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, fmt.Errorf("decode account cache: %w", err)
	}

	accountCacheHits.Inc()
	c.logger.Debug().Int("count", len(hashes)).Msg("Account cache hit")
	return identifier.FromSlice(hashes), nil
}

// Set stores the account hash set with the configured TTL.
func (c *AccountCache) Set(ctx context.Context, set *identifier.Set) error {
	if set == nil {
		return fmt.Errorf("account set cannot be nil")
	}

	hashes := make([]string, 0, set.Len())
	for _, id := range set.Slice() {
		hashes = append(hashes, id.String())
	}

	data, err := json.Marshal(hashes)
	if err != nil {
		return fmt.Errorf("encode account cache: %w", err)
	}

	if err := c.redis.Set(ctx, redisKeyAccountHashes, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	c.logger.Debug().Int("count", len(hashes)).Dur("ttl", c.ttl).Msg("Account cache stored")
	return nil
}

// Delete drops the cached set.
func (c *AccountCache) Delete(ctx context.Context) error {
	if err := c.redis.Del(ctx, redisKeyAccountHashes).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// FileAccountCache adapts the file store's account cache to the
// context-based cache interface used by the collector.
type FileAccountCache struct {
	store *Store
}

// NewFileAccountCache wraps a store.
func NewFileAccountCache(store *Store) *FileAccountCache {
	return &FileAccountCache{store: store}
}

// Get loads the cached account set from the file store.
func (c *FileAccountCache) Get(_ context.Context) (*identifier.Set, error) {
	return c.store.LoadAccountCache()
}

// Set writes the account set to the file store.
func (c *FileAccountCache) Set(_ context.Context, set *identifier.Set) error {
	return c.store.SaveAccountCache(set)
}
