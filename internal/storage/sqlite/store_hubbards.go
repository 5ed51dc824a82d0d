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

const hubbardColumns = `id, element, ligand, convention, hubbard_l, hubbard_u,
	oxidation_state, created_at`

// PutHubbard inserts one Hubbard record, returning the existing record when
// an identical parameterization is already stored.
func (s *Store) PutHubbard(ctx context.Context, record storage.HubbardRecord) (storage.HubbardRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.HubbardRecord{}, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return storage.HubbardRecord{}, fmt.Errorf("hubbard id is required")
	}
	if strings.TrimSpace(record.Element) == "" {
		return storage.HubbardRecord{}, fmt.Errorf("element is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record.CreatedAt = createdAt

	var oxidation sql.NullFloat64
	if record.HasOxidationState {
		oxidation = sql.NullFloat64{Float64: record.OxidationState, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO hubbards (
	id, element, ligand, convention, hubbard_l, hubbard_u,
	oxidation_state, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Element,
		record.Ligand,
		record.Convention,
		record.L,
		record.U,
		oxidation,
		toMillis(createdAt),
	)
	if err == nil {
		return record, nil
	}
	if !isUniqueViolation(err) {
		return storage.HubbardRecord{}, fmt.Errorf("put hubbard: %w", err)
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+hubbardColumns+` FROM hubbards
		 WHERE element = ? AND ligand = ? AND convention = ? AND hubbard_l = ? AND hubbard_u = ?`,
		record.Element, record.Ligand, record.Convention, record.L, record.U)
	existing, err := scanHubbard(row)
	if err != nil {
		return storage.HubbardRecord{}, fmt.Errorf("get existing hubbard: %w", err)
	}
	return existing, nil
}

// GetHubbard fetches one Hubbard record by ID.
func (s *Store) GetHubbard(ctx context.Context, id string) (storage.HubbardRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.HubbardRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.HubbardRecord{}, fmt.Errorf("hubbard id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+hubbardColumns+" FROM hubbards WHERE id = ?", id)
	return scanHubbard(row)
}

// ListHubbards returns one page of Hubbard records plus the total match
// count.
func (s *Store) ListHubbards(ctx context.Context, query storage.Query) ([]storage.HubbardRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "element ASC, hubbard_u ASC")
	total, err := s.countWhere(ctx, "hubbards", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+hubbardColumns+" FROM hubbards"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list hubbards: %w", err)
	}
	defer rows.Close()

	var records []storage.HubbardRecord
	for rows.Next() {
		record, err := scanHubbard(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate hubbard rows: %w", err)
	}
	return records, total, nil
}

func scanHubbard(row rowScanner) (storage.HubbardRecord, error) {
	var record storage.HubbardRecord
	var oxidation sql.NullFloat64
	var createdAt int64
	err := row.Scan(
		&record.ID,
		&record.Element,
		&record.Ligand,
		&record.Convention,
		&record.L,
		&record.U,
		&oxidation,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.HubbardRecord{}, storage.ErrNotFound
		}
		return storage.HubbardRecord{}, fmt.Errorf("scan hubbard: %w", err)
	}
	if oxidation.Valid {
		record.OxidationState = oxidation.Float64
		record.HasOxidationState = true
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
