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

const potentialColumns = `id, element, name, date, xc, elec_config, enmax, enmin,
	paw, us, gw, release, potcar, created_at`

// PutPotential inserts one pseudopotential record, returning the existing
// record when an identical header is already stored.
func (s *Store) PutPotential(ctx context.Context, record storage.PotentialRecord) (storage.PotentialRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PotentialRecord{}, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return storage.PotentialRecord{}, fmt.Errorf("potential id is required")
	}
	if strings.TrimSpace(record.Element) == "" {
		return storage.PotentialRecord{}, fmt.Errorf("element is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return storage.PotentialRecord{}, fmt.Errorf("name is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record.CreatedAt = createdAt

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO potentials (
	id, element, name, date, xc, elec_config, enmax, enmin,
	paw, us, gw, release, potcar, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Element,
		record.Name,
		record.Date,
		record.XC,
		record.ElecConfig,
		record.Enmax,
		record.Enmin,
		boolToInt(record.Paw),
		boolToInt(record.Us),
		boolToInt(record.Gw),
		record.Release,
		record.Potcar,
		toMillis(createdAt),
	)
	if err == nil {
		return record, nil
	}
	if !isUniqueViolation(err) {
		return storage.PotentialRecord{}, fmt.Errorf("put potential: %w", err)
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+potentialColumns+` FROM potentials
		 WHERE name = ? AND xc = ? AND gw = ? AND release = ?`,
		record.Name, record.XC, boolToInt(record.Gw), record.Release)
	existing, err := scanPotential(row)
	if err != nil {
		return storage.PotentialRecord{}, fmt.Errorf("get existing potential: %w", err)
	}
	return existing, nil
}

// GetPotential fetches one pseudopotential by ID.
func (s *Store) GetPotential(ctx context.Context, id string) (storage.PotentialRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PotentialRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.PotentialRecord{}, fmt.Errorf("potential id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+potentialColumns+" FROM potentials WHERE id = ?", id)
	return scanPotential(row)
}

// ListPotentials returns one page of pseudopotentials plus the total match
// count.
func (s *Store) ListPotentials(ctx context.Context, query storage.Query) ([]storage.PotentialRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "element ASC, name ASC")
	total, err := s.countWhere(ctx, "potentials", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+potentialColumns+" FROM potentials"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list potentials: %w", err)
	}
	defer rows.Close()

	var records []storage.PotentialRecord
	for rows.Next() {
		record, err := scanPotential(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate potential rows: %w", err)
	}
	return records, total, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func scanPotential(row rowScanner) (storage.PotentialRecord, error) {
	var record storage.PotentialRecord
	var paw, us, gw int
	var createdAt int64
	err := row.Scan(
		&record.ID,
		&record.Element,
		&record.Name,
		&record.Date,
		&record.XC,
		&record.ElecConfig,
		&record.Enmax,
		&record.Enmin,
		&paw,
		&us,
		&gw,
		&record.Release,
		&record.Potcar,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PotentialRecord{}, storage.ErrNotFound
		}
		return storage.PotentialRecord{}, fmt.Errorf("scan potential: %w", err)
	}
	record.Paw = paw != 0
	record.Us = us != 0
	record.Gw = gw != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
