// Package api parses API command flags and launches the REST server.
package api

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	entrypoint "github.com/oqmd/qmdb/internal/platform/cmd"
	apiserver "github.com/oqmd/qmdb/internal/services/api"
	"github.com/oqmd/qmdb/internal/storage/sqlite"
)

// Config holds API command configuration.
type Config struct {
	HTTPAddr     string `env:"QMDB_API_HTTP_ADDR" envDefault:":8080"`
	DBPath       string `env:"QMDB_API_DB_PATH" envDefault:"data/qmdb.db"`
	AuthSecret   string `env:"QMDB_API_AUTH_SECRET"`
	AuthIssuer   string `env:"QMDB_API_AUTH_ISSUER"`
	AuthAudience string `env:"QMDB_API_AUTH_AUDIENCE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The REST API listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "HMAC signing key for bearer tokens (empty disables auth)")
	fs.StringVar(&cfg.AuthIssuer, "auth-issuer", cfg.AuthIssuer, "Required bearer token issuer")
	fs.StringVar(&cfg.AuthAudience, "auth-audience", cfg.AuthAudience, "Required bearer token audience")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the API server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(context.Context) error {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
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

		server, err := apiserver.NewServer(apiserver.Config{
			HTTPAddr: cfg.HTTPAddr,
			Auth: apiserver.AuthConfig{
				Secret:   cfg.AuthSecret,
				Issuer:   cfg.AuthIssuer,
				Audience: cfg.AuthAudience,
			},
		}, store)
		if err != nil {
			return fmt.Errorf("build api server: %w", err)
		}
		return server.ListenAndServe(ctx)
	})
}
