package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/oqmd/qmdb/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "qmdb.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTime() time.Time {
	return time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func testEntry(id, path, name string) storage.EntryRecord {
	return storage.EntryRecord{
		ID:          id,
		Path:        path,
		Name:        name,
		Generic:     "AB",
		ElementList: "Cl_Na_",
		NAtoms:      2,
		NElements:   2,
		NSites:      8,
		Volume:      179.4,
		Spacegroup:  225,
		CreatedAt:   testTime(),
		UpdatedAt:   testTime(),
	}
}

func TestPutGetEntryRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := testEntry("ent-1", "/data/NaCl/rocksalt", "ClNa")
	if err := store.PutEntry(context.Background(), input); err != nil {
		t.Fatalf("put entry: %v", err)
	}

	got, err := store.GetEntry(context.Background(), "ent-1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Path != input.Path || got.Name != input.Name {
		t.Fatalf("got path %q name %q, want %q %q", got.Path, got.Name, input.Path, input.Name)
	}
	if got.Spacegroup != 225 || got.NSites != 8 {
		t.Fatalf("spacegroup/nsites = %d/%d", got.Spacegroup, got.NSites)
	}
	if !got.CreatedAt.Equal(testTime()) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}

	byPath, err := store.GetEntryByPath(context.Background(), input.Path)
	if err != nil {
		t.Fatalf("get entry by path: %v", err)
	}
	if byPath.ID != "ent-1" {
		t.Fatalf("id = %q, want ent-1", byPath.ID)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetEntry(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestPutEntryDuplicatePath(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.PutEntry(context.Background(), testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put first entry: %v", err)
	}
	err := store.PutEntry(context.Background(), testEntry("ent-2", "/data/a", "ClNa"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestListEntriesFilterAndPage(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	entries := []storage.EntryRecord{
		testEntry("ent-1", "/data/a", "ClNa"),
		testEntry("ent-2", "/data/b", "ClNa"),
		testEntry("ent-3", "/data/c", "FeO"),
	}
	for _, entry := range entries {
		if err := store.PutEntry(ctx, entry); err != nil {
			t.Fatalf("put entry %s: %v", entry.ID, err)
		}
	}

	records, total, err := store.ListEntries(ctx, storage.Query{
		Where: "name = ?",
		Args:  []any{"ClNa"},
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if len(records) != 1 || records[0].ID != "ent-1" {
		t.Fatalf("records = %+v, want single ent-1", records)
	}

	records, _, err = store.ListEntries(ctx, storage.Query{
		Where:  "name = ?",
		Args:   []any{"ClNa"},
		Limit:  1,
		Offset: 1,
	})
	if err != nil {
		t.Fatalf("list entries page 2: %v", err)
	}
	if len(records) != 1 || records[0].ID != "ent-2" {
		t.Fatalf("records = %+v, want single ent-2", records)
	}
}

func TestDeleteEntryCascades(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutEntry(ctx, testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	if err := store.PutCalculation(ctx, storage.CalculationRecord{
		ID:          "calc-1",
		EntryID:     "ent-1",
		Label:       "static",
		Composition: "ClNa",
		Energy:      -7.1,
		EnergyPA:    -3.55,
		Converged:   true,
		CreatedAt:   testTime(),
		UpdatedAt:   testTime(),
	}); err != nil {
		t.Fatalf("put calculation: %v", err)
	}

	if err := store.DeleteEntry(ctx, "ent-1"); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if _, err := store.GetCalculation(ctx, "calc-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("calculation error = %v, want %v", err, storage.ErrNotFound)
	}
	if err := store.DeleteEntry(ctx, "ent-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestCalculationRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutEntry(ctx, testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	input := storage.CalculationRecord{
		ID:          "calc-1",
		EntryID:     "ent-1",
		Label:       "standard",
		Composition: "ClNa",
		Energy:      -7.1,
		EnergyPA:    -3.55,
		Magmom:      0.2,
		BandGap:     5.1,
		Converged:   true,
		Settings:    "[incar]\nencut = 520\n",
		CreatedAt:   testTime(),
		UpdatedAt:   testTime(),
	}
	if err := store.PutCalculation(ctx, input); err != nil {
		t.Fatalf("put calculation: %v", err)
	}

	got, err := store.GetCalculation(ctx, "calc-1")
	if err != nil {
		t.Fatalf("get calculation: %v", err)
	}
	if !got.Converged || got.EnergyPA != -3.55 || got.BandGap != 5.1 {
		t.Fatalf("got %+v", got)
	}
	if got.Settings != input.Settings {
		t.Fatalf("settings = %q", got.Settings)
	}

	byEntry, err := store.ListCalculationsByEntry(ctx, "ent-1")
	if err != nil {
		t.Fatalf("list by entry: %v", err)
	}
	if len(byEntry) != 1 || byEntry[0].ID != "calc-1" {
		t.Fatalf("by entry = %+v", byEntry)
	}
}

func TestFormationRoundTripAndHullPhases(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutEntry(ctx, testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	if err := store.PutEntry(ctx, testEntry("ent-2", "/data/b", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}

	formations := []storage.FormationRecord{
		{
			ID: "form-1", EntryID: "ent-1", Composition: "ClNa",
			Fit: "standard", DeltaE: -2.0,
			Stability: 0, HasStability: true,
			CreatedAt: testTime(), UpdatedAt: testTime(),
		},
		{
			ID: "form-2", EntryID: "ent-2", Composition: "ClNa",
			Fit: "standard", DeltaE: -1.7,
			CreatedAt: testTime(), UpdatedAt: testTime(),
		},
	}
	for _, formation := range formations {
		if err := store.PutFormation(ctx, formation); err != nil {
			t.Fatalf("put formation %s: %v", formation.ID, err)
		}
	}

	got, err := store.GetFormation(ctx, "form-1")
	if err != nil {
		t.Fatalf("get formation: %v", err)
	}
	if !got.HasStability || got.Stability != 0 {
		t.Fatalf("form-1 stability = %+v", got)
	}
	got, err = store.GetFormation(ctx, "form-2")
	if err != nil {
		t.Fatalf("get formation: %v", err)
	}
	if got.HasStability {
		t.Fatal("form-2 should have no stability")
	}

	phases, err := store.ListHullPhases(ctx, "standard")
	if err != nil {
		t.Fatalf("list hull phases: %v", err)
	}
	if len(phases) != 1 {
		t.Fatalf("phases = %d, want 1", len(phases))
	}
	if phases[0].DeltaE != -2.0 {
		t.Fatalf("hull phase delta_e = %v, want -2.0", phases[0].DeltaE)
	}
}

func TestPutFormationUniquePerEntryFit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutEntry(ctx, testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	if err := store.PutFormation(ctx, storage.FormationRecord{
		ID: "form-1", EntryID: "ent-1", Composition: "ClNa",
		Fit: "standard", DeltaE: -2.0,
		CreatedAt: testTime(), UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("put formation: %v", err)
	}

	// A racing writer inserting a fresh id for the same entry and fit
	// updates the existing row instead of duplicating it.
	if err := store.PutFormation(ctx, storage.FormationRecord{
		ID: "form-other", EntryID: "ent-1", Composition: "ClNa",
		Fit: "standard", DeltaE: -2.2,
		CreatedAt: testTime(), UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("put duplicate pair: %v", err)
	}

	records, total, err := store.ListFormations(ctx, storage.Query{
		Where: "entry_id = ? AND fit = ?", Args: []any{"ent-1", "standard"},
	})
	if err != nil {
		t.Fatalf("list formations: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("rows = %d (total %d), want 1", len(records), total)
	}
	if records[0].ID != "form-1" || records[0].DeltaE != -2.2 {
		t.Fatalf("record = %+v, want form-1 with delta_e -2.2", records[0])
	}
}

func TestPutPotentialGetOrCreate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	input := storage.PotentialRecord{
		ID:      "pot-1",
		Element: "Li",
		Name:    "Li_sv",
		Date:    "10Sep2004",
		XC:      "PBE",
		Enmax:   499.034,
		Enmin:   374.276,
		Paw:     true,
		Release: "r5_4_0",
	}
	first, err := store.PutPotential(ctx, input)
	if err != nil {
		t.Fatalf("put potential: %v", err)
	}
	if first.ID != "pot-1" {
		t.Fatalf("id = %q, want pot-1", first.ID)
	}

	input.ID = "pot-2"
	second, err := store.PutPotential(ctx, input)
	if err != nil {
		t.Fatalf("put duplicate potential: %v", err)
	}
	if second.ID != "pot-1" {
		t.Fatalf("duplicate returned id %q, want existing pot-1", second.ID)
	}

	_, total, err := store.ListPotentials(ctx, storage.Query{})
	if err != nil {
		t.Fatalf("list potentials: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}

func TestPutHubbardGetOrCreate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	input := storage.HubbardRecord{
		ID:                "hub-1",
		Element:           "Fe",
		Ligand:            "O",
		Convention:        "wang",
		L:                 2,
		U:                 3.8,
		OxidationState:    3,
		HasOxidationState: true,
	}
	if _, err := store.PutHubbard(ctx, input); err != nil {
		t.Fatalf("put hubbard: %v", err)
	}

	input.ID = "hub-2"
	second, err := store.PutHubbard(ctx, input)
	if err != nil {
		t.Fatalf("put duplicate hubbard: %v", err)
	}
	if second.ID != "hub-1" {
		t.Fatalf("duplicate returned id %q, want existing hub-1", second.ID)
	}

	got, err := store.GetHubbard(ctx, "hub-1")
	if err != nil {
		t.Fatalf("get hubbard: %v", err)
	}
	if !got.HasOxidationState || got.OxidationState != 3 {
		t.Fatalf("oxidation state = %+v", got)
	}
}

func TestTaskClaimCompleteFlow(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := testTime()
	tasks := []storage.TaskRecord{
		{ID: "task-1", Kind: storage.TaskKindFormation, EntryID: "ent-1", Priority: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "task-2", Kind: storage.TaskKindFormation, EntryID: "ent-2", Priority: 5, CreatedAt: now, UpdatedAt: now},
	}
	for _, task := range tasks {
		if err := store.PutTask(ctx, task); err != nil {
			t.Fatalf("put task %s: %v", task.ID, err)
		}
	}

	claimed, err := store.ClaimTask(ctx, []string{storage.TaskKindFormation}, time.Minute, now)
	if err != nil {
		t.Fatalf("claim task: %v", err)
	}
	if claimed.ID != "task-2" {
		t.Fatalf("claimed %q, want highest-priority task-2", claimed.ID)
	}
	if claimed.State != storage.TaskStateLeased || claimed.Attempts != 1 {
		t.Fatalf("claimed = %+v", claimed)
	}

	if err := store.CompleteTask(ctx, claimed.ID, now.Add(time.Second)); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	got, err := store.GetTask(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.State != storage.TaskStateDone {
		t.Fatalf("state = %q, want done", got.State)
	}

	// Completing a task that is not leased is a conflict.
	if err := store.CompleteTask(ctx, claimed.ID, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("double complete error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestTaskClaimHonorsNotBeforeAndLeaseExpiry(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := testTime()
	if err := store.PutTask(ctx, storage.TaskRecord{
		ID:        "task-1",
		Kind:      storage.TaskKindStability,
		NotBefore: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("put task: %v", err)
	}

	if _, err := store.ClaimTask(ctx, []string{storage.TaskKindStability}, time.Minute, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("early claim error = %v, want %v", err, storage.ErrNotFound)
	}

	claimed, err := store.ClaimTask(ctx, []string{storage.TaskKindStability}, time.Minute, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("claim after delay: %v", err)
	}

	// The lease has expired; the task is claimable again.
	reclaimed, err := store.ClaimTask(ctx, []string{storage.TaskKindStability}, time.Minute, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("reclaim after lease expiry: %v", err)
	}
	if reclaimed.ID != claimed.ID || reclaimed.Attempts != 2 {
		t.Fatalf("reclaimed = %+v", reclaimed)
	}
}

func TestFailTaskRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := testTime()
	if err := store.PutTask(ctx, storage.TaskRecord{
		ID:          "task-1",
		Kind:        storage.TaskKindFormation,
		MaxAttempts: 2,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("put task: %v", err)
	}

	claimed, err := store.ClaimTask(ctx, []string{storage.TaskKindFormation}, time.Minute, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	failed, err := store.FailTask(ctx, claimed.ID, "missing potential", time.Minute, now)
	if err != nil {
		t.Fatalf("fail task: %v", err)
	}
	if failed.State != storage.TaskStatePending {
		t.Fatalf("state = %q, want pending", failed.State)
	}
	if failed.LastError != "missing potential" {
		t.Fatalf("last error = %q", failed.LastError)
	}
	if !failed.NotBefore.After(now) {
		t.Fatalf("not before = %v, want after %v", failed.NotBefore, now)
	}

	claimed, err = store.ClaimTask(ctx, []string{storage.TaskKindFormation}, time.Minute, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	failed, err = store.FailTask(ctx, claimed.ID, "still failing", time.Minute, now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("second fail: %v", err)
	}
	if failed.State != storage.TaskStateDead {
		t.Fatalf("state = %q, want dead after max attempts", failed.State)
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutEntry(ctx, testEntry("ent-1", "/data/a", "ClNa")); err != nil {
		t.Fatalf("put entry: %v", err)
	}
	if err := store.PutFormation(ctx, storage.FormationRecord{
		ID: "form-1", EntryID: "ent-1", Composition: "ClNa",
		Fit: "standard", DeltaE: -2.0,
		CreatedAt: testTime(), UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("put formation: %v", err)
	}
	if err := store.PutFormation(ctx, storage.FormationRecord{
		ID: "form-2", EntryID: "ent-1", Composition: "ClNa",
		Fit: "hubbard", DeltaE: -2.1,
		CreatedAt: testTime(), UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("put formation: %v", err)
	}
	if err := store.PutTask(ctx, storage.TaskRecord{
		ID: "task-1", Kind: storage.TaskKindFormation,
		CreatedAt: testTime(), UpdatedAt: testTime(),
	}); err != nil {
		t.Fatalf("put task: %v", err)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("entries = %d, want 1", stats.Entries)
	}
	if stats.StandardFormations != 1 {
		t.Fatalf("standard formations = %d, want 1", stats.StandardFormations)
	}
	if stats.TasksPending != 1 {
		t.Fatalf("tasks pending = %d, want 1", stats.TasksPending)
	}
}
