// Package worker runs the background analysis loop: it claims queued tasks
// and computes formation energies and hull stabilities for entries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/oqmd/qmdb/internal/analysis/thermo"
	"github.com/oqmd/qmdb/internal/materials"
	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
	"github.com/oqmd/qmdb/internal/platform/id"
	"github.com/oqmd/qmdb/internal/storage"
)

// Config controls the processing loop behavior.
type Config struct {
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

const (
	defaultPollInterval  = 2 * time.Second
	defaultLeaseTTL      = 30 * time.Second
	defaultRetryBackoff  = 5 * time.Second
	defaultRetryMaxDelay = 5 * time.Minute
)

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Worker claims and processes analysis tasks against a store.
type Worker struct {
	store storage.Store
	refs  *thermo.ReferenceSet
	cfg   Config
	now   func() time.Time
}

// New builds a worker over a store and a chemical potential reference set.
func New(store storage.Store, refs *thermo.ReferenceSet, cfg Config) (*Worker, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if refs == nil {
		return nil, errors.New("reference set is required")
	}
	return &Worker{
		store: store,
		refs:  refs,
		cfg:   cfg.normalized(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

var taskKinds = []string{storage.TaskKindFormation, storage.TaskKindStability}

// Run processes tasks until the context ends, sleeping between polls while
// the queue is empty.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("worker polling every %s", w.cfg.PollInterval)
	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// RunOnce claims and processes at most one task. It reports whether a task
// was claimed. Task failures are recorded on the task, not returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.store.ClaimTask(ctx, taskKinds, w.cfg.LeaseTTL, w.now())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	tracer := otel.Tracer("qmdb/worker")
	taskCtx, span := tracer.Start(ctx, "worker.process")
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.kind", task.Kind),
		attribute.Int("task.attempts", task.Attempts),
	)
	defer span.End()

	if processErr := w.process(taskCtx, task); processErr != nil {
		delay := retryDelay(task.Attempts, w.cfg.RetryBackoff, w.cfg.RetryMaxDelay)
		failed, failErr := w.store.FailTask(taskCtx, task.ID, processErr.Error(), delay, w.now())
		if failErr != nil {
			return true, fmt.Errorf("fail task %s: %w", task.ID, failErr)
		}
		log.Printf("task %s (%s) attempt %d failed, state %s: %v",
			task.ID, task.Kind, task.Attempts, failed.State, processErr)
		return true, nil
	}

	if err := w.store.CompleteTask(taskCtx, task.ID, w.now()); err != nil {
		return true, fmt.Errorf("complete task %s: %w", task.ID, err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, task storage.TaskRecord) error {
	switch task.Kind {
	case storage.TaskKindFormation:
		return w.processFormation(ctx, task)
	case storage.TaskKindStability:
		return w.processStability(ctx, task)
	default:
		return apperrors.New(apperrors.CodeTaskInvalidKind,
			fmt.Sprintf("unknown task kind %q", task.Kind))
	}
}

// processFormation references the entry's best converged calculation against
// the standard fit and stores the formation energy, then queues a stability
// pass.
func (w *Worker) processFormation(ctx context.Context, task storage.TaskRecord) error {
	entry, err := w.store.GetEntry(ctx, task.EntryID)
	if err != nil {
		return fmt.Errorf("load entry %s: %w", task.EntryID, err)
	}
	calculation, err := w.bestCalculation(ctx, entry.ID)
	if err != nil {
		return err
	}

	name := calculation.Composition
	if name == "" {
		name = entry.Name
	}
	composition, err := materials.ParseComposition(name)
	if err != nil {
		return fmt.Errorf("parse composition %q: %w", name, err)
	}
	deltaE, err := w.refs.FormationEnergyPerAtom(composition, calculation.EnergyPA, thermo.FitStandard)
	if err != nil {
		return err
	}

	record, err := w.formationForEntry(ctx, entry.ID)
	if err != nil {
		return err
	}
	now := w.now()
	if record.ID == "" {
		record = storage.FormationRecord{ID: id.New(), CreatedAt: now}
	}
	record.EntryID = entry.ID
	record.CalculationID = calculation.ID
	record.Composition = composition.Name()
	record.Fit = thermo.FitStandard
	record.DeltaE = deltaE
	record.UpdatedAt = now
	if err := w.store.PutFormation(ctx, record); err != nil {
		return fmt.Errorf("store formation energy: %w", err)
	}

	return w.store.PutTask(ctx, storage.TaskRecord{
		ID:          id.New(),
		Kind:        storage.TaskKindStability,
		EntryID:     entry.ID,
		State:       storage.TaskStatePending,
		Priority:    task.Priority,
		MaxAttempts: task.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// processStability measures the entry's formation energy against the hull of
// competing phases and stores the distance.
func (w *Worker) processStability(ctx context.Context, task storage.TaskRecord) error {
	record, err := w.formationForEntry(ctx, task.EntryID)
	if err != nil {
		return err
	}
	if record.ID == "" {
		return apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("entry %s has no formation energy", task.EntryID))
	}
	composition, err := materials.ParseComposition(record.Composition)
	if err != nil {
		return fmt.Errorf("parse composition %q: %w", record.Composition, err)
	}

	hullPhases, err := w.store.ListHullPhases(ctx, thermo.FitStandard)
	if err != nil {
		return fmt.Errorf("list hull phases: %w", err)
	}
	// The entry competes against every other composition; leaving its own
	// composition out lets new ground states report negative stability.
	phases := make([]thermo.Phase, 0, len(hullPhases))
	for _, phase := range hullPhases {
		if phase.Composition == record.Composition {
			continue
		}
		phaseComposition, err := materials.ParseComposition(phase.Composition)
		if err != nil {
			return fmt.Errorf("parse phase composition %q: %w", phase.Composition, err)
		}
		phases = append(phases, thermo.Phase{
			Name:        phase.Composition,
			Composition: phaseComposition,
			DeltaE:      phase.DeltaE,
		})
	}

	result, err := thermo.HullDistance(composition, record.DeltaE, phases)
	if err != nil {
		return err
	}
	record.Stability = result.Stability
	record.HasStability = true
	record.UpdatedAt = w.now()
	if err := w.store.PutFormation(ctx, record); err != nil {
		return fmt.Errorf("store stability: %w", err)
	}
	return nil
}

// bestCalculation picks the lowest-energy converged calculation of an entry.
func (w *Worker) bestCalculation(ctx context.Context, entryID string) (storage.CalculationRecord, error) {
	calculations, err := w.store.ListCalculationsByEntry(ctx, entryID)
	if err != nil {
		return storage.CalculationRecord{}, fmt.Errorf("list calculations: %w", err)
	}
	var best storage.CalculationRecord
	found := false
	for _, calculation := range calculations {
		if !calculation.Converged {
			continue
		}
		if !found || calculation.EnergyPA < best.EnergyPA {
			best = calculation
			found = true
		}
	}
	if !found {
		return storage.CalculationRecord{}, apperrors.New(apperrors.CodeCalculationNotConverged,
			fmt.Sprintf("entry %s has no converged calculation", entryID))
	}
	return best, nil
}

// formationForEntry returns the entry's standard-fit formation energy, or a
// zero record when none is stored yet.
func (w *Worker) formationForEntry(ctx context.Context, entryID string) (storage.FormationRecord, error) {
	records, _, err := w.store.ListFormations(ctx, storage.Query{
		Where: "entry_id = ? AND fit = ?",
		Args:  []any{entryID, thermo.FitStandard},
		Limit: 1,
	})
	if err != nil {
		return storage.FormationRecord{}, fmt.Errorf("list formation energies: %w", err)
	}
	if len(records) == 0 {
		return storage.FormationRecord{}, nil
	}
	return records[0], nil
}

// retryDelay grows the backoff exponentially with the attempt count, capped
// at max.
func retryDelay(attempts int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
