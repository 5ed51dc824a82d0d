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

const entryColumns = `id, path, name, generic, element_list, natoms, nelements, nsites,
	volume, spacegroup, poscar, label, created_at, updated_at`

// PutEntry inserts or updates one entry record.
func (s *Store) PutEntry(ctx context.Context, record storage.EntryRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("entry id is required")
	}
	if strings.TrimSpace(record.Path) == "" {
		return fmt.Errorf("entry path is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("entry name is required")
	}
	createdAt := record.CreatedAt.UTC()
	updatedAt := record.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO entries (
	id, path, name, generic, element_list, natoms, nelements, nsites,
	volume, spacegroup, poscar, label, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	path = excluded.path,
	name = excluded.name,
	generic = excluded.generic,
	element_list = excluded.element_list,
	natoms = excluded.natoms,
	nelements = excluded.nelements,
	nsites = excluded.nsites,
	volume = excluded.volume,
	spacegroup = excluded.spacegroup,
	poscar = excluded.poscar,
	label = excluded.label,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.Path,
		record.Name,
		record.Generic,
		record.ElementList,
		record.NAtoms,
		record.NElements,
		record.NSites,
		record.Volume,
		record.Spacegroup,
		record.Poscar,
		record.Label,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// GetEntry fetches one entry by ID.
func (s *Store) GetEntry(ctx context.Context, id string) (storage.EntryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EntryRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.EntryRecord{}, fmt.Errorf("entry id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	return scanEntry(row)
}

// GetEntryByPath fetches one entry by its unique path.
func (s *Store) GetEntryByPath(ctx context.Context, path string) (storage.EntryRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EntryRecord{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return storage.EntryRecord{}, fmt.Errorf("entry path is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE path = ?", path)
	return scanEntry(row)
}

// ListEntries returns one page of entries plus the total match count.
func (s *Store) ListEntries(ctx context.Context, query storage.Query) ([]storage.EntryRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "id ASC")
	total, err := s.countWhere(ctx, "entries", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var records []storage.EntryRecord
	for rows.Next() {
		record, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entry rows: %w", err)
	}
	return records, total, nil
}

// DeleteEntry deletes one entry and, via foreign keys, its calculations and
// formation energies.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("entry id is required")
	}
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (storage.EntryRecord, error) {
	var record storage.EntryRecord
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.Path,
		&record.Name,
		&record.Generic,
		&record.ElementList,
		&record.NAtoms,
		&record.NElements,
		&record.NSites,
		&record.Volume,
		&record.Spacegroup,
		&record.Poscar,
		&record.Label,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EntryRecord{}, storage.ErrNotFound
		}
		return storage.EntryRecord{}, fmt.Errorf("scan entry: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
