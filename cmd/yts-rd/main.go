// Command yts-rd reconciles the YTS catalog against a Real-Debrid
// account and submits the missing torrent hashes as magnets.
//
// Modes:
//
//	yts-rd [sync]   collect both hash sets, reconcile, run one batch
//	yts-rd resume   skip collection, continue the persisted pending queue
//
// Configuration is environment-only; REAL_DEBRID_API_TOKEN is required.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Zerr0-C00L/YTS-RD/pkg/batch"
	"github.com/Zerr0-C00L/YTS-RD/pkg/catalog"
	"github.com/Zerr0-C00L/YTS-RD/pkg/collector"
	"github.com/Zerr0-C00L/YTS-RD/pkg/debrid"
	"github.com/Zerr0-C00L/YTS-RD/pkg/identifier"
	"github.com/Zerr0-C00L/YTS-RD/pkg/logging"
	"github.com/Zerr0-C00L/YTS-RD/pkg/state"
	"github.com/Zerr0-C00L/YTS-RD/pkg/submit"
)

type config struct {
	token           string
	ytsBaseURL      string
	minRating       float64
	startPage       int
	maxPages        int
	concurrency     int
	batchSize       int
	checkpointEvery int
	stateDir        string
	redisAddr       string
	logLevel        string
	logPretty       bool
}

// loadConfig reads the configuration from environment variables. The
// token is the only required setting.
func loadConfig() (config, error) {
	cfg := config{
		token:           os.Getenv("REAL_DEBRID_API_TOKEN"),
		ytsBaseURL:      getEnv("YTS_BASE_URL", catalog.DefaultBaseURL),
		minRating:       getEnvFloat("MIN_RATING", 0),
		startPage:       getEnvInt("START_PAGE", 1),
		maxPages:        getEnvInt("MAX_PAGES", 0),
		concurrency:     getEnvInt("CONCURRENCY", 10),
		batchSize:       getEnvInt("BATCH_SIZE", 10000),
		checkpointEvery: getEnvInt("CHECKPOINT_EVERY", 50),
		stateDir:        getEnv("STATE_DIR", "./state"),
		redisAddr:       os.Getenv("REDIS_URL"),
		logLevel:        getEnv("LOG_LEVEL", "info"),
		logPretty:       getEnvBool("LOG_PRETTY", false),
	}

	if cfg.token == "" {
		return cfg, fmt.Errorf("REAL_DEBRID_API_TOKEN is required")
	}
	if cfg.startPage < 1 {
		return cfg, fmt.Errorf("START_PAGE must be >= 1, got %d", cfg.startPage)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.logLevel),
		Pretty: cfg.logPretty,
	})

	mode := "sync"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := state.NewStore(cfg.stateDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.stateDir).Msg("Failed to open state directory")
	}

	rd, err := debrid.New(debrid.Config{Token: cfg.token})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Real-Debrid client")
	}

	worker := submit.NewWorker(rd, rd, store, submit.DefaultConfig())
	runner := batch.NewRunner(worker, store, batch.Config{
		BatchSize:       cfg.batchSize,
		CheckpointEvery: cfg.checkpointEvery,
	})

	switch mode {
	case "sync":
		err = runSync(ctx, logger, cfg, store, rd, runner)
	case "resume":
		err = runResume(ctx, logger, store, runner)
	default:
		logger.Fatal().Str("mode", mode).Msg("Unknown mode, expected sync or resume")
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("Interrupted, progress saved; rerun with resume to continue")
			return
		}
		logger.Fatal().Err(err).Msg("Run failed")
	}
}

// runSync collects both hash sets, reconciles them, persists the pending
// queue and runs the first batch over it.
func runSync(ctx context.Context, logger zerolog.Logger, cfg config, store *state.Store, rd *debrid.Client, runner *batch.Runner) error {
	yts := catalog.New(catalog.Config{
		BaseURL:       cfg.ytsBaseURL,
		MinimumRating: cfg.minRating,
	})

	totalPages, err := yts.PageCount(ctx)
	if err != nil {
		return fmt.Errorf("determine catalog size: %w", err)
	}

	endPage := totalPages
	if cfg.maxPages > 0 && cfg.startPage+cfg.maxPages-1 < endPage {
		endPage = cfg.startPage + cfg.maxPages - 1
	}

	catalogSet, failedPages, err := collector.
		NewCatalog(yts, collector.Config{MaxConcurrency: cfg.concurrency}).
		Collect(ctx, cfg.startPage, endPage, totalPages)
	if err != nil {
		return fmt.Errorf("collect catalog: %w", err)
	}
	if len(failedPages) > 0 {
		logger.Warn().
			Ints("failed_pages", failedPages).
			Msg("Proceeding with incomplete catalog; rerun sync to pick up missed pages")
	}

	accountSet, fromCache, err := collector.
		NewAccount(rd, collector.AccountConfig{}, accountCaches(logger, cfg, store)...).
		Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect account: %w", err)
	}

	pending := identifier.Difference(catalogSet, accountSet)
	logger.Info().
		Int("catalog", catalogSet.Len()).
		Int("account", accountSet.Len()).
		Bool("account_from_cache", fromCache).
		Int("pending", len(pending)).
		Msg("Reconciliation complete")

	if err := store.SavePending(pending); err != nil {
		return err
	}
	if err := store.SaveCursor(0); err != nil {
		return err
	}

	_, err = runner.Run(ctx, pending, 0)
	return err
}

// runResume continues a persisted run: pending queue and cursor come
// from the state directory, no collection happens.
func runResume(ctx context.Context, logger zerolog.Logger, store *state.Store, runner *batch.Runner) error {
	pending, err := store.LoadPending()
	if err != nil {
		if errors.Is(err, state.ErrNoPending) {
			return fmt.Errorf("no pending list in state directory, run sync first")
		}
		return err
	}

	cursor, err := store.LoadCursor()
	if err != nil {
		return err
	}

	logger.Info().
		Int("pending", len(pending)).
		Int("cursor", cursor).
		Msg("Resuming persisted run")

	_, err = runner.Run(ctx, pending, cursor)
	return err
}

// accountCaches builds the cache chain for the account collector: the
// state-directory file first, then Redis when configured.
func accountCaches(logger zerolog.Logger, cfg config, store *state.Store) []collector.AccountCache {
	caches := []collector.AccountCache{state.NewFileAccountCache(store)}

	if cfg.redisAddr == "" {
		return caches
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.redisAddr).Msg("Redis unreachable, using file cache only")
		return caches
	}

	logger.Info().Str("addr", cfg.redisAddr).Msg("Redis account cache enabled")
	return append(caches, state.NewAccountCache(redisClient, state.DefaultAccountCacheTTL))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
