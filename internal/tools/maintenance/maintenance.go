// Package maintenance provides operational utilities for the materials
// database: content statistics, analysis recomputation, and integrity
// checking of stored entries.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/oqmd/qmdb/internal/materials"
	"github.com/oqmd/qmdb/internal/platform/id"
	"github.com/oqmd/qmdb/internal/storage"
	"github.com/oqmd/qmdb/internal/storage/sqlite"
)

const scanPageSize = 500

// Config holds maintenance command configuration.
type Config struct {
	DBPath      string
	Timeout     time.Duration
	Stats       bool
	Recompute   bool
	Integrity   bool
	MintToken   bool
	MaxAttempts int
	WarningsCap int
	JSONOutput  bool

	TokenSecret   string
	TokenIssuer   string
	TokenAudience string
	TokenTTL      time.Duration
}

type envConfig struct {
	DBPath        string        `env:"QMDB_DB_PATH"`
	Timeout       time.Duration `env:"QMDB_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	TokenSecret   string        `env:"QMDB_API_AUTH_SECRET"`
	TokenIssuer   string        `env:"QMDB_API_AUTH_ISSUER"`
	TokenAudience string        `env:"QMDB_API_AUTH_AUDIENCE"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:        envCfg.DBPath,
		Timeout:       envCfg.Timeout,
		MaxAttempts:   5,
		WarningsCap:   25,
		TokenSecret:   envCfg.TokenSecret,
		TokenIssuer:   envCfg.TokenIssuer,
		TokenAudience: envCfg.TokenAudience,
		TokenTTL:      15 * time.Minute,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "qmdb.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to sqlite database (default: QMDB_DB_PATH or data/qmdb.db)")
	fs.BoolVar(&cfg.Stats, "stats", false, "print database content statistics")
	fs.BoolVar(&cfg.Recompute, "recompute", false, "queue formation energy recomputation for every entry")
	fs.BoolVar(&cfg.Integrity, "integrity", false, "verify stored entries against their structure files")
	fs.BoolVar(&cfg.MintToken, "mint-token", false, "mint a short-lived API bearer token")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "HMAC signing key for -mint-token (default: QMDB_API_AUTH_SECRET)")
	fs.StringVar(&cfg.TokenIssuer, "token-issuer", cfg.TokenIssuer, "iss claim for -mint-token (default: QMDB_API_AUTH_ISSUER)")
	fs.StringVar(&cfg.TokenAudience, "token-audience", cfg.TokenAudience, "aud claim for -mint-token (default: QMDB_API_AUTH_AUDIENCE)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "lifetime of a minted token")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "maximum attempts for queued analysis tasks")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max warnings to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	modes := 0
	for _, enabled := range []bool{cfg.Stats, cfg.Recompute, cfg.Integrity, cfg.MintToken} {
		if enabled {
			modes++
		}
	}
	if modes > 1 {
		return errors.New("-stats, -recompute, -integrity and -mint-token are mutually exclusive")
	}
	if cfg.WarningsCap < 0 {
		return errors.New("-warnings-cap must be >= 0")
	}
	if cfg.Recompute && cfg.MaxAttempts <= 0 {
		return errors.New("-max-attempts must be > 0")
	}
	if cfg.MintToken {
		return runMintToken(cfg, out)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return runWithDeps(ctx, cfg, store, out, errOut)
}

// runWithDeps contains the core maintenance logic with an injectable store.
// It owns the store lifecycle.
func runWithDeps(ctx context.Context, cfg Config, store storage.Store, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close store: %v\n", err)
		}
	}()

	switch {
	case cfg.Recompute:
		return runRecompute(ctx, store, cfg.MaxAttempts, cfg.JSONOutput, out)
	case cfg.Integrity:
		return runIntegrity(ctx, store, cfg.WarningsCap, cfg.JSONOutput, out, errOut)
	default:
		return runStats(ctx, store, cfg.JSONOutput, out)
	}
}

// runMintToken signs a short-lived bearer token for the API's mutating
// endpoints, carrying the claims the server validates.
func runMintToken(cfg Config, out io.Writer) error {
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return errors.New("-token-secret (or QMDB_API_AUTH_SECRET) is required")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("-token-ttl must be > 0")
	}
	if out == nil {
		out = io.Discard
	}

	now := time.Now()
	expires := now.Add(cfg.TokenTTL)
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if cfg.TokenIssuer != "" {
		claims["iss"] = cfg.TokenIssuer
	}
	if cfg.TokenAudience != "" {
		claims["aud"] = cfg.TokenAudience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.TokenSecret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	if cfg.JSONOutput {
		return json.NewEncoder(out).Encode(struct {
			Token     string `json:"token"`
			ExpiresAt string `json:"expires_at"`
		}{Token: signed, ExpiresAt: expires.UTC().Format(time.RFC3339)})
	}
	_, err = fmt.Fprintln(out, signed)
	return err
}

// runStats prints aggregate content counts.
func runStats(ctx context.Context, store storage.Store, jsonOutput bool, out io.Writer) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	if jsonOutput {
		report := struct {
			Entries            int64 `json:"entries"`
			Calculations       int64 `json:"calculations"`
			StandardFormations int64 `json:"formation_energies"`
			Potentials         int64 `json:"potentials"`
			Hubbards           int64 `json:"hubbards"`
			TasksPending       int64 `json:"tasks_pending"`
			TasksDead          int64 `json:"tasks_dead"`
		}{
			Entries:            stats.Entries,
			Calculations:       stats.Calculations,
			StandardFormations: stats.StandardFormations,
			Potentials:         stats.Potentials,
			Hubbards:           stats.Hubbards,
			TasksPending:       stats.TasksPending,
			TasksDead:          stats.TasksDead,
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	printer := message.NewPrinter(language.AmericanEnglish)
	printer.Fprintf(out, "entries:            %d\n", stats.Entries)
	printer.Fprintf(out, "calculations:       %d\n", stats.Calculations)
	printer.Fprintf(out, "formation energies: %d\n", stats.StandardFormations)
	printer.Fprintf(out, "potentials:         %d\n", stats.Potentials)
	printer.Fprintf(out, "hubbards:           %d\n", stats.Hubbards)
	printer.Fprintf(out, "tasks pending:      %d\n", stats.TasksPending)
	printer.Fprintf(out, "tasks dead:         %d\n", stats.TasksDead)
	return nil
}

// runRecompute queues one formation task per entry so the worker rebuilds
// every formation energy and stability.
func runRecompute(ctx context.Context, store storage.Store, maxAttempts int, jsonOutput bool, out io.Writer) error {
	queued := 0
	err := scanEntries(ctx, store, func(entry storage.EntryRecord) error {
		now := time.Now().UTC()
		task := storage.TaskRecord{
			ID:          id.New(),
			Kind:        storage.TaskKindFormation,
			EntryID:     entry.ID,
			State:       storage.TaskStatePending,
			MaxAttempts: maxAttempts,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.PutTask(ctx, task); err != nil {
			return fmt.Errorf("queue task for entry %s: %w", entry.ID, err)
		}
		queued++
		return nil
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(out)
		return encoder.Encode(struct {
			Queued int `json:"queued"`
		}{Queued: queued})
	}
	_, err = fmt.Fprintf(out, "queued %d formation task(s)\n", queued)
	return err
}

// integrityReport is the JSON shape of an integrity run.
type integrityReport struct {
	EntriesChecked    int      `json:"entries_checked"`
	FormationsChecked int      `json:"formations_checked"`
	Warnings          []string `json:"warnings"`
}

// runIntegrity re-derives each entry's composition from its stored structure
// and reports mismatches, plus formation energies with unparseable
// compositions.
func runIntegrity(ctx context.Context, store storage.Store, warningsCap int, jsonOutput bool, out io.Writer, errOut io.Writer) error {
	var report integrityReport

	err := scanEntries(ctx, store, func(entry storage.EntryRecord) error {
		report.EntriesChecked++
		if warning := checkEntry(entry); warning != "" {
			report.Warnings = append(report.Warnings, warning)
		}
		return nil
	})
	if err != nil {
		return err
	}

	offset := 0
	for {
		formations, _, err := store.ListFormations(ctx, storage.Query{
			Limit: scanPageSize, Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("list formation energies: %w", err)
		}
		if len(formations) == 0 {
			break
		}
		for _, formation := range formations {
			report.FormationsChecked++
			if _, err := materials.ParseComposition(formation.Composition); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"formation %s: unparseable composition %q", formation.ID, formation.Composition))
			}
		}
		offset += len(formations)
	}

	if jsonOutput {
		if report.Warnings == nil {
			report.Warnings = []string{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "checked %d entries, %d formation energies\n",
			report.EntriesChecked, report.FormationsChecked)
		for i, warning := range report.Warnings {
			if warningsCap > 0 && i >= warningsCap {
				fmt.Fprintf(errOut, "Warning: %d more warning(s) suppressed\n", len(report.Warnings)-i)
				break
			}
			fmt.Fprintf(errOut, "Warning: %s\n", warning)
		}
	}

	if len(report.Warnings) > 0 {
		return fmt.Errorf("integrity check found %d problem(s)", len(report.Warnings))
	}
	return nil
}

// checkEntry verifies an entry's derived fields against its stored POSCAR.
func checkEntry(entry storage.EntryRecord) string {
	if strings.TrimSpace(entry.Poscar) == "" {
		if _, err := materials.ParseComposition(entry.Name); err != nil {
			return fmt.Sprintf("entry %s: unparseable name %q", entry.ID, entry.Name)
		}
		return ""
	}

	structure, _, err := materials.ReadPoscar(strings.NewReader(entry.Poscar))
	if err != nil {
		return fmt.Sprintf("entry %s: unreadable poscar: %v", entry.ID, err)
	}
	composition, err := structure.Composition()
	if err != nil {
		return fmt.Sprintf("entry %s: poscar composition: %v", entry.ID, err)
	}
	if composition.Name() != entry.Name {
		return fmt.Sprintf("entry %s: stored name %q but poscar derives %q",
			entry.ID, entry.Name, composition.Name())
	}
	if structure.NSites() != entry.NSites {
		return fmt.Sprintf("entry %s: stored nsites %d but poscar has %d",
			entry.ID, entry.NSites, structure.NSites())
	}
	return ""
}

// scanEntries pages through every entry.
func scanEntries(ctx context.Context, store storage.Store, visit func(storage.EntryRecord) error) error {
	offset := 0
	for {
		entries, _, err := store.ListEntries(ctx, storage.Query{
			Limit: scanPageSize, Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			if err := visit(entry); err != nil {
				return err
			}
		}
		offset += len(entries)
	}
}
