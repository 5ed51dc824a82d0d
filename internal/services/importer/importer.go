// Package importer walks a calculation tree and loads structures,
// calculation summaries, and pseudopotentials into the database.
package importer

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oqmd/qmdb/internal/analysis/symmetry"
	"github.com/oqmd/qmdb/internal/inifile"
	"github.com/oqmd/qmdb/internal/materials"
	"github.com/oqmd/qmdb/internal/platform/id"
	"github.com/oqmd/qmdb/internal/storage"
	"github.com/oqmd/qmdb/internal/storage/sqlite"
	"github.com/oqmd/qmdb/internal/vasp"
)

// File names recognized inside a calculation directory.
const (
	poscarFile      = "POSCAR"
	potcarFile      = "POTCAR"
	calculationFile = "calculation.ini"
)

// Config holds configuration for the importer.
type Config struct {
	Dir         string
	DBPath      string
	MaxAttempts int
	DryRun      bool
}

// ParseConfig parses CLI flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		DBPath:      filepath.Join("data", "qmdb.db"),
		MaxAttempts: 5,
	}

	fs.StringVar(&cfg.Dir, "dir", "", "directory tree containing POSCAR and POTCAR files")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "database path")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "maximum attempts for queued analysis tasks")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate without writing to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Dir) == "" {
		return Config{}, errors.New("dir is required")
	}
	return cfg, nil
}

// Summary counts what one import pass touched.
type Summary struct {
	Entries      int
	Skipped      int
	Calculations int
	Potentials   int
}

// Run executes the importer using the provided Config.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return errors.New("dir is required")
	}

	var store storage.Store
	if !cfg.DryRun {
		sqliteStore, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	summary, err := Import(ctx, store, dir, cfg.MaxAttempts)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		_, err = fmt.Fprintf(out, "validated %d entries, %d calculations, %d potentials in %s\n",
			summary.Entries, summary.Calculations, summary.Potentials, dir)
		return err
	}
	_, err = fmt.Fprintf(out, "imported %d entries (%d already present), %d calculations, %d potentials into %s\n",
		summary.Entries, summary.Skipped, summary.Calculations, summary.Potentials, cfg.DBPath)
	return err
}

// Import walks dir and loads everything it recognizes. A nil store
// validates without writing.
func Import(ctx context.Context, store storage.Store, dir string, maxAttempts int) (Summary, error) {
	var summary Summary
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		switch d.Name() {
		case poscarFile:
			return importEntry(ctx, store, dir, path, maxAttempts, &summary)
		case potcarFile:
			return importPotentials(ctx, store, path, &summary)
		default:
			return nil
		}
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// importEntry loads one POSCAR into an entry, together with a sibling
// calculation summary when one is present. Entries already imported at the
// same path are skipped.
func importEntry(ctx context.Context, store storage.Store, root, path string, maxAttempts int, summary *Summary) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	structure, _, err := materials.ReadPoscar(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	composition, err := structure.Composition()
	if err != nil {
		return fmt.Errorf("composition of %s: %w", path, err)
	}

	entryPath, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", path, err)
	}
	entryPath = filepath.ToSlash(entryPath)

	calculation, spacegroup, hasCalculation, err := readCalculationFile(filepath.Join(filepath.Dir(path), calculationFile))
	if err != nil {
		return err
	}

	if store == nil {
		summary.Entries++
		if hasCalculation {
			summary.Calculations++
		}
		return nil
	}

	if _, err := store.GetEntryByPath(ctx, entryPath); err == nil {
		summary.Skipped++
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("look up entry %s: %w", entryPath, err)
	}

	poscar, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	now := time.Now().UTC()
	entry := storage.EntryRecord{
		ID:          id.New(),
		Path:        entryPath,
		Name:        composition.Name(),
		Generic:     composition.Generic(),
		ElementList: elementList(composition),
		NAtoms:      int(composition.NAtoms()),
		NElements:   composition.NElements(),
		NSites:      structure.NSites(),
		Volume:      structure.Lattice.Volume(),
		Spacegroup:  spacegroup,
		Poscar:      string(poscar),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("store entry %s: %w", entryPath, err)
	}
	summary.Entries++

	if hasCalculation {
		calculation.ID = id.New()
		calculation.EntryID = entry.ID
		calculation.Path = entryPath
		if calculation.Composition == "" {
			calculation.Composition = entry.Name
		}
		calculation.CreatedAt = now
		calculation.UpdatedAt = now
		if err := store.PutCalculation(ctx, calculation); err != nil {
			return fmt.Errorf("store calculation for %s: %w", entryPath, err)
		}
		summary.Calculations++
	}

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
		return fmt.Errorf("queue formation task for %s: %w", entryPath, err)
	}
	return nil
}

// readCalculationFile parses a calculation summary INI. The [calculation]
// section carries the results, including the optional spacegroup number
// stamped onto the entry; every other section is kept as the settings
// snapshot.
func readCalculationFile(path string) (storage.CalculationRecord, int, bool, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.CalculationRecord{}, 0, false, nil
	}
	if err != nil {
		return storage.CalculationRecord{}, 0, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	settings, err := inifile.Read(file)
	if err != nil {
		return storage.CalculationRecord{}, 0, false, fmt.Errorf("read %s: %w", path, err)
	}
	results := settings["calculation"]
	delete(settings, "calculation")

	var record storage.CalculationRecord
	record.Label = results["label"]
	if record.Label == "" {
		record.Label = "static"
	}
	record.Composition = results["composition"]
	if record.Energy, err = floatOption(results, "energy"); err != nil {
		return record, 0, false, fmt.Errorf("%s: %w", path, err)
	}
	if record.EnergyPA, err = floatOption(results, "energy_pa"); err != nil {
		return record, 0, false, fmt.Errorf("%s: %w", path, err)
	}
	if record.Magmom, err = floatOption(results, "magmom"); err != nil {
		return record, 0, false, fmt.Errorf("%s: %w", path, err)
	}
	if record.BandGap, err = floatOption(results, "band_gap"); err != nil {
		return record, 0, false, fmt.Errorf("%s: %w", path, err)
	}
	record.Converged = strings.EqualFold(results["converged"], "true")

	spacegroup, err := intOption(results, "spacegroup")
	if err != nil {
		return record, 0, false, fmt.Errorf("%s: %w", path, err)
	}
	if spacegroup != 0 {
		if _, err := symmetry.SystemForNumber(spacegroup); err != nil {
			return record, 0, false, fmt.Errorf("%s: %w", path, err)
		}
	}

	if len(settings) > 0 {
		var rendered strings.Builder
		if err := inifile.Write(&rendered, settings); err != nil {
			return record, 0, false, fmt.Errorf("render settings of %s: %w", path, err)
		}
		record.Settings = rendered.String()
	}
	return record, spacegroup, true, nil
}

func floatOption(options map[string]string, name string) (float64, error) {
	value, ok := options[name]
	if !ok {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", name, err)
	}
	return parsed, nil
}

func intOption(options map[string]string, name string) (int, error) {
	value, ok := options[name]
	if !ok {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", name, err)
	}
	return parsed, nil
}

// importPotentials loads every dataset of one POTCAR file.
func importPotentials(ctx context.Context, store storage.Store, path string, summary *Summary) error {
	potentials, err := vasp.ReadPotcarFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if store == nil {
		summary.Potentials += len(potentials)
		return nil
	}
	for _, potential := range potentials {
		record := storage.PotentialRecord{
			ID:         id.New(),
			Element:    potential.Element,
			Name:       potential.Name,
			Date:       potential.Date,
			XC:         potential.XC,
			ElecConfig: potential.ElecConfig,
			Enmax:      potential.Enmax,
			Enmin:      potential.Enmin,
			Paw:        potential.Paw,
			Us:         potential.Us,
			Gw:         potential.Gw,
			Release:    potential.Release,
			Potcar:     potential.Potcar,
			CreatedAt:  time.Now().UTC(),
		}
		if _, err := store.PutPotential(ctx, record); err != nil {
			return fmt.Errorf("store potential %s: %w", potential.Name, err)
		}
		summary.Potentials++
	}
	return nil
}

// elementList renders the element membership string, e.g. "Cl_Na_".
func elementList(composition materials.Composition) string {
	var b strings.Builder
	for _, element := range composition.Elements() {
		b.WriteString(element)
		b.WriteString("_")
	}
	return b.String()
}
