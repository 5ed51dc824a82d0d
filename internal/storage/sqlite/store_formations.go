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

const formationColumns = `id, entry_id, calculation_id, composition, fit,
	delta_e, stability, created_at, updated_at`

// PutFormation inserts or updates one formation energy record. One row
// exists per (entry, fit); an insert with a fresh id for an existing pair
// updates the existing row in place.
func (s *Store) PutFormation(ctx context.Context, record storage.FormationRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("formation id is required")
	}
	if strings.TrimSpace(record.EntryID) == "" {
		return fmt.Errorf("entry id is required")
	}
	if strings.TrimSpace(record.Fit) == "" {
		return fmt.Errorf("fit is required")
	}
	createdAt := record.CreatedAt.UTC()
	updatedAt := record.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	var stability sql.NullFloat64
	if record.HasStability {
		stability = sql.NullFloat64{Float64: record.Stability, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO formation_energies (
	id, entry_id, calculation_id, composition, fit,
	delta_e, stability, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entry_id, fit) DO UPDATE SET
	calculation_id = excluded.calculation_id,
	composition = excluded.composition,
	delta_e = excluded.delta_e,
	stability = excluded.stability,
	updated_at = excluded.updated_at
ON CONFLICT(id) DO UPDATE SET
	entry_id = excluded.entry_id,
	calculation_id = excluded.calculation_id,
	composition = excluded.composition,
	fit = excluded.fit,
	delta_e = excluded.delta_e,
	stability = excluded.stability,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.EntryID,
		record.CalculationID,
		record.Composition,
		record.Fit,
		record.DeltaE,
		stability,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put formation: %w", err)
	}
	return nil
}

// GetFormation fetches one formation energy by ID.
func (s *Store) GetFormation(ctx context.Context, id string) (storage.FormationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FormationRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.FormationRecord{}, fmt.Errorf("formation id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+formationColumns+" FROM formation_energies WHERE id = ?", id)
	return scanFormation(row)
}

// ListFormations returns one page of formation energies plus the total
// match count.
func (s *Store) ListFormations(ctx context.Context, query storage.Query) ([]storage.FormationRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "id ASC")
	total, err := s.countWhere(ctx, "formation_energies", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+formationColumns+" FROM formation_energies"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list formations: %w", err)
	}
	defer rows.Close()

	var records []storage.FormationRecord
	for rows.Next() {
		record, err := scanFormation(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate formation rows: %w", err)
	}
	return records, total, nil
}

// ListHullPhases returns the lowest formation energy per composition for a
// fit.
func (s *Store) ListHullPhases(ctx context.Context, fit string) ([]storage.FormationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	fit = strings.TrimSpace(fit)
	if fit == "" {
		return nil, fmt.Errorf("fit is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, entry_id, calculation_id, composition, fit, MIN(delta_e) AS delta_e,
       stability, created_at, updated_at
FROM formation_energies
WHERE fit = ?
GROUP BY composition
ORDER BY composition ASC
`, fit)
	if err != nil {
		return nil, fmt.Errorf("list hull phases: %w", err)
	}
	defer rows.Close()

	var records []storage.FormationRecord
	for rows.Next() {
		record, err := scanFormation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hull phase rows: %w", err)
	}
	return records, nil
}

func scanFormation(row rowScanner) (storage.FormationRecord, error) {
	var record storage.FormationRecord
	var stability sql.NullFloat64
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.EntryID,
		&record.CalculationID,
		&record.Composition,
		&record.Fit,
		&record.DeltaE,
		&stability,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.FormationRecord{}, storage.ErrNotFound
		}
		return storage.FormationRecord{}, fmt.Errorf("scan formation: %w", err)
	}
	if stability.Valid {
		record.Stability = stability.Float64
		record.HasStability = true
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
