package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oqmd/qmdb/internal/storage"
)

const calculationColumns = `id, entry_id, label, composition, energy, energy_pa,
	magmom, band_gap, converged, settings, path, created_at, updated_at`

// PutCalculation inserts or updates one calculation record.
func (s *Store) PutCalculation(ctx context.Context, record storage.CalculationRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("calculation id is required")
	}
	if strings.TrimSpace(record.EntryID) == "" {
		return fmt.Errorf("entry id is required")
	}
	if strings.TrimSpace(record.Label) == "" {
		return fmt.Errorf("label is required")
	}
	createdAt := record.CreatedAt.UTC()
	updatedAt := record.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	converged := 0
	if record.Converged {
		converged = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO calculations (
	id, entry_id, label, composition, energy, energy_pa,
	magmom, band_gap, converged, settings, path, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	entry_id = excluded.entry_id,
	label = excluded.label,
	composition = excluded.composition,
	energy = excluded.energy,
	energy_pa = excluded.energy_pa,
	magmom = excluded.magmom,
	band_gap = excluded.band_gap,
	converged = excluded.converged,
	settings = excluded.settings,
	path = excluded.path,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.EntryID,
		record.Label,
		record.Composition,
		record.Energy,
		record.EnergyPA,
		record.Magmom,
		record.BandGap,
		converged,
		record.Settings,
		record.Path,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put calculation: %w", err)
	}
	return nil
}

// GetCalculation fetches one calculation by ID.
func (s *Store) GetCalculation(ctx context.Context, id string) (storage.CalculationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CalculationRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.CalculationRecord{}, fmt.Errorf("calculation id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations WHERE id = ?", id)
	return scanCalculation(row)
}

// ListCalculations returns one page of calculations plus the total match
// count.
func (s *Store) ListCalculations(ctx context.Context, query storage.Query) ([]storage.CalculationRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "id ASC")
	total, err := s.countWhere(ctx, "calculations", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list calculations: %w", err)
	}
	defer rows.Close()

	var records []storage.CalculationRecord
	for rows.Next() {
		record, err := scanCalculation(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate calculation rows: %w", err)
	}
	return records, total, nil
}

// ListCalculationsByEntry returns every calculation for one entry.
func (s *Store) ListCalculationsByEntry(ctx context.Context, entryID string) ([]storage.CalculationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, fmt.Errorf("entry id is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+calculationColumns+" FROM calculations WHERE entry_id = ? ORDER BY id ASC", entryID)
	if err != nil {
		return nil, fmt.Errorf("list calculations by entry: %w", err)
	}
	defer rows.Close()

	var records []storage.CalculationRecord
	for rows.Next() {
		record, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculation rows: %w", err)
	}
	return records, nil
}

func scanCalculation(row rowScanner) (storage.CalculationRecord, error) {
	var record storage.CalculationRecord
	var converged int
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.EntryID,
		&record.Label,
		&record.Composition,
		&record.Energy,
		&record.EnergyPA,
		&record.Magmom,
		&record.BandGap,
		&converged,
		&record.Settings,
		&record.Path,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CalculationRecord{}, storage.ErrNotFound
		}
		return storage.CalculationRecord{}, fmt.Errorf("scan calculation: %w", err)
	}
	record.Converged = converged != 0
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
