// Package worker parses worker command flags and launches the analysis loop.
package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oqmd/qmdb/internal/analysis/thermo"
	entrypoint "github.com/oqmd/qmdb/internal/platform/cmd"
	workerservice "github.com/oqmd/qmdb/internal/services/worker"
	"github.com/oqmd/qmdb/internal/storage/sqlite"
)

// Config holds worker command configuration.
type Config struct {
	DBPath        string        `env:"QMDB_WORKER_DB_PATH" envDefault:"data/qmdb.db"`
	FitsPath      string        `env:"QMDB_WORKER_FITS_PATH"`
	PollInterval  time.Duration `env:"QMDB_WORKER_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL      time.Duration `env:"QMDB_WORKER_LEASE_TTL" envDefault:"30s"`
	RetryBackoff  time.Duration `env:"QMDB_WORKER_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay time.Duration `env:"QMDB_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.FitsPath, "fits-path", cfg.FitsPath, "Chemical potential fits YAML file")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Task queue poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Task lease duration")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.FitsPath) == "" {
		return Config{}, errors.New("fits-path is required")
	}
	return cfg, nil
}

// Run starts the worker loop.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		refs, err := thermo.ReadFitsFile(cfg.FitsPath)
		if err != nil {
			return fmt.Errorf("load chemical potential fits: %w", err)
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close sqlite store: %v", closeErr)
			}
		}()

		loop, err := workerservice.New(store, refs, workerservice.Config{
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		})
		if err != nil {
			return fmt.Errorf("build worker: %w", err)
		}
		return loop.Run(ctx)
	})
}
