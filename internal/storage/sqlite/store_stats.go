package sqlite

import (
	"context"
	"fmt"

	"github.com/oqmd/qmdb/internal/analysis/thermo"
	"github.com/oqmd/qmdb/internal/storage"
)

// GetStats reports aggregate record counts.
func (s *Store) GetStats(ctx context.Context) (storage.Stats, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Stats{}, err
	}

	var stats storage.Stats
	counts := []struct {
		query string
		args  []any
		dest  *int64
	}{
		{query: "SELECT COUNT(*) FROM entries", dest: &stats.Entries},
		{query: "SELECT COUNT(*) FROM calculations", dest: &stats.Calculations},
		{
			query: "SELECT COUNT(*) FROM formation_energies WHERE fit = ?",
			args:  []any{thermo.FitStandard},
			dest:  &stats.StandardFormations,
		},
		{query: "SELECT COUNT(*) FROM potentials", dest: &stats.Potentials},
		{query: "SELECT COUNT(*) FROM hubbards", dest: &stats.Hubbards},
		{
			query: "SELECT COUNT(*) FROM tasks WHERE state = ?",
			args:  []any{storage.TaskStatePending},
			dest:  &stats.TasksPending,
		},
		{
			query: "SELECT COUNT(*) FROM tasks WHERE state = ?",
			args:  []any{storage.TaskStateDead},
			dest:  &stats.TasksDead,
		},
	}
	for _, count := range counts {
		row := s.sqlDB.QueryRowContext(ctx, count.query, count.args...)
		if err := row.Scan(count.dest); err != nil {
			return storage.Stats{}, fmt.Errorf("count stats: %w", err)
		}
	}
	return stats, nil
}
