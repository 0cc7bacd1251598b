// Package config loads operator-supplied settings from the environment,
// matching the teacher's convention of one flat envconfig struct with
// defaults baked in via struct tags.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/near-indexer/txwatch/commit"
	"github.com/near-indexer/txwatch/reassembly"
)

// Config is the process-wide configuration, populated once at startup from
// environment variables prefixed TXWATCH_.
type Config struct {
	// DatabaseURL is the Postgres DSN the sink connects to.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// StorePath is the directory the working-set store (goleveldb) lives in.
	StorePath string `envconfig:"STORE_PATH" default:"./working_set"`

	// CleanStart wipes StorePath before opening it. Debug-only: normal
	// restarts always rely on the safe-catch-up rewind instead.
	CleanStart bool `envconfig:"CLEAN_START" default:"false"`

	// CommitEveryBlock forces a sink commit after every block instead of
	// batching to MinBatch/SaveStep. Slow, but useful for low-volume chains
	// or debugging.
	CommitEveryBlock bool `envconfig:"COMMIT_EVERY_BLOCK" default:"false"`

	// PostgresSkipCommit runs the full pipeline but never writes rows to
	// the sink. Useful for dry-running against a live feed.
	PostgresSkipCommit bool `envconfig:"POSTGRES_SKIP_COMMIT" default:"false"`

	// MinBatch is the transaction-row count that forces a commit.
	MinBatch int `envconfig:"MIN_BATCH" default:"10000"`

	// SaveStep is the block-height stride that forces a commit even if
	// MinBatch has not been reached, bounding how much work a crash loses.
	SaveStep uint64 `envconfig:"SAVE_STEP" default:"1000"`

	// HeaderRetention is how many of the most recent block headers the
	// reassembly cache keeps before trimming the oldest.
	HeaderRetention int `envconfig:"HEADER_RETENTION" default:"2000"`

	// SafeCatchUp is how many blocks behind the persisted high-water mark
	// the engine rewinds to on a cold cache, re-scanning in skip mode.
	SafeCatchUp uint64 `envconfig:"SAFE_CATCH_UP" default:"1000"`

	// MissingHeaderLogPath receives one line per block height whose header
	// had already been evicted by the time a transaction touching it
	// completed. Empty disables the side log.
	MissingHeaderLogPath string `envconfig:"MISSING_HEADER_LOG_PATH" default:""`

	// ChannelCapacity bounds the fetcher->processor block channel.
	ChannelCapacity int `envconfig:"CHANNEL_CAPACITY" default:"100"`

	// FeedBaseURL is the root of the block-by-height HTTP JSON feed.
	FeedBaseURL string `envconfig:"FEED_BASE_URL" required:"true"`

	// FeedWorkers is the number of concurrent block-fetching goroutines.
	FeedWorkers int `envconfig:"FEED_WORKERS" default:"4"`
}

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("txwatch", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.HeaderRetention <= 0 {
		c.HeaderRetention = reassembly.DefaultHeaderRetention
	}
	if c.MinBatch <= 0 {
		c.MinBatch = commit.DefaultMinBatch
	}
	if c.SaveStep == 0 {
		c.SaveStep = commit.DefaultSaveStep
	}
	return c, nil
}
