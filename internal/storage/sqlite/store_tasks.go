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

const taskColumns = `id, kind, entry_id, state, priority, attempts, max_attempts,
	not_before, lease_expires_at, last_error, created_at, updated_at`

// PutTask inserts or updates one task record.
func (s *Store) PutTask(ctx context.Context, record storage.TaskRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(record.Kind) == "" {
		return fmt.Errorf("task kind is required")
	}
	if strings.TrimSpace(record.State) == "" {
		record.State = storage.TaskStatePending
	}
	if record.MaxAttempts <= 0 {
		record.MaxAttempts = 5
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
INSERT INTO tasks (
	id, kind, entry_id, state, priority, attempts, max_attempts,
	not_before, lease_expires_at, last_error, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind,
	entry_id = excluded.entry_id,
	state = excluded.state,
	priority = excluded.priority,
	attempts = excluded.attempts,
	max_attempts = excluded.max_attempts,
	not_before = excluded.not_before,
	lease_expires_at = excluded.lease_expires_at,
	last_error = excluded.last_error,
	updated_at = excluded.updated_at
`,
		record.ID,
		record.Kind,
		record.EntryID,
		record.State,
		record.Priority,
		record.Attempts,
		record.MaxAttempts,
		toMillis(record.NotBefore),
		toMillis(record.LeaseExpiresAt),
		record.LastError,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask fetches one task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (storage.TaskRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TaskRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.TaskRecord{}, fmt.Errorf("task id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	return scanTask(row)
}

// ListTasks returns one page of tasks plus the total match count.
func (s *Store) ListTasks(ctx context.Context, query storage.Query) ([]storage.TaskRecord, int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	where, tail, args := listClauses(query, "created_at ASC, id ASC")
	total, err := s.countWhere(ctx, "tasks", where, query.Args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks"+where+tail, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var records []storage.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate task rows: %w", err)
	}
	return records, total, nil
}

// ClaimTask leases the highest-priority runnable task of one of the given
// kinds. Pending tasks past their retry delay and leased tasks with expired
// leases are both runnable.
func (s *Store) ClaimTask(ctx context.Context, kinds []string, lease time.Duration, now time.Time) (storage.TaskRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TaskRecord{}, err
	}
	if len(kinds) == 0 {
		return storage.TaskRecord{}, fmt.Errorf("at least one task kind is required")
	}
	if lease <= 0 {
		return storage.TaskRecord{}, fmt.Errorf("lease duration must be greater than zero")
	}
	nowMillis := toMillis(now.UTC())

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.TaskRecord{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(kinds)), ", ")
	args := make([]any, 0, len(kinds)+3)
	for _, kind := range kinds {
		args = append(args, kind)
	}
	args = append(args, storage.TaskStatePending, nowMillis, storage.TaskStateLeased, nowMillis)

	row := tx.QueryRowContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE kind IN (`+placeholders+`)
  AND ((state = ? AND not_before <= ?) OR (state = ? AND lease_expires_at <= ?))
ORDER BY priority DESC, created_at ASC, id ASC
LIMIT 1
`, args...)
	record, err := scanTask(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.TaskRecord{}, storage.ErrNotFound
		}
		return storage.TaskRecord{}, fmt.Errorf("select claimable task: %w", err)
	}

	record.State = storage.TaskStateLeased
	record.Attempts++
	record.LeaseExpiresAt = now.UTC().Add(lease)
	record.UpdatedAt = now.UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE tasks
SET state = ?, attempts = ?, lease_expires_at = ?, updated_at = ?
WHERE id = ?
`,
		record.State,
		record.Attempts,
		toMillis(record.LeaseExpiresAt),
		toMillis(record.UpdatedAt),
		record.ID,
	); err != nil {
		return storage.TaskRecord{}, fmt.Errorf("lease task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.TaskRecord{}, fmt.Errorf("commit claim: %w", err)
	}
	return record, nil
}

// CompleteTask marks a leased task done.
func (s *Store) CompleteTask(ctx context.Context, id string, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("task id is required")
	}
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE tasks
SET state = ?, lease_expires_at = 0, last_error = '', updated_at = ?
WHERE id = ? AND state = ?
`, storage.TaskStateDone, toMillis(now.UTC()), id, storage.TaskStateLeased)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete task rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FailTask records a failed attempt, returning the task to pending with a
// retry delay or moving it to dead once attempts are exhausted.
func (s *Store) FailTask(ctx context.Context, id string, taskErr string, retryAfter time.Duration, now time.Time) (storage.TaskRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.TaskRecord{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.TaskRecord{}, fmt.Errorf("task id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.TaskRecord{}, fmt.Errorf("begin fail: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	record, err := scanTask(row)
	if err != nil {
		return storage.TaskRecord{}, err
	}
	if record.State != storage.TaskStateLeased {
		return storage.TaskRecord{}, storage.ErrNotFound
	}

	record.LastError = taskErr
	record.LeaseExpiresAt = time.Time{}
	record.UpdatedAt = now.UTC()
	if record.Attempts >= record.MaxAttempts {
		record.State = storage.TaskStateDead
		record.NotBefore = time.Time{}
	} else {
		record.State = storage.TaskStatePending
		record.NotBefore = now.UTC().Add(retryAfter)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE tasks
SET state = ?, not_before = ?, lease_expires_at = 0, last_error = ?, updated_at = ?
WHERE id = ?
`,
		record.State,
		toMillis(record.NotBefore),
		record.LastError,
		toMillis(record.UpdatedAt),
		record.ID,
	); err != nil {
		return storage.TaskRecord{}, fmt.Errorf("fail task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.TaskRecord{}, fmt.Errorf("commit fail: %w", err)
	}
	return record, nil
}

func scanTask(row rowScanner) (storage.TaskRecord, error) {
	var record storage.TaskRecord
	var notBefore, leaseExpiresAt, createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.Kind,
		&record.EntryID,
		&record.State,
		&record.Priority,
		&record.Attempts,
		&record.MaxAttempts,
		&notBefore,
		&leaseExpiresAt,
		&record.LastError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TaskRecord{}, storage.ErrNotFound
		}
		return storage.TaskRecord{}, fmt.Errorf("scan task: %w", err)
	}
	record.NotBefore = fromMillis(notBefore)
	record.LeaseExpiresAt = fromMillis(leaseExpiresAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
