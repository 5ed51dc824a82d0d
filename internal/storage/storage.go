// Package storage defines the persistence interfaces and record types for
// the materials database.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a unique constraint rejected a record.
var ErrAlreadyExists = errors.New("record already exists")

// Query narrows and pages a list operation. Where is a SQL condition over
// the store's column names with ? placeholders bound from Args; an empty
// Where selects everything.
type Query struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// EntryRecord is one structure entry: a path on disk, its composition, and
// derived structural metadata.
type EntryRecord struct {
	ID   string
	Path string
	// Name is the reduced composition name, e.g. "ClNa".
	Name string
	// Generic is the anonymized formula, e.g. "AB".
	Generic string
	// ElementList is the membership string "Fe_O_" used for element
	// containment filters.
	ElementList string
	NAtoms      int
	NElements   int
	NSites      int
	Volume      float64
	Spacegroup  int
	// Poscar is the structure serialized in POSCAR form.
	Poscar    string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryStore persists structure entries.
type EntryStore interface {
	PutEntry(ctx context.Context, record EntryRecord) error
	GetEntry(ctx context.Context, id string) (EntryRecord, error)
	GetEntryByPath(ctx context.Context, path string) (EntryRecord, error)
	ListEntries(ctx context.Context, query Query) ([]EntryRecord, int64, error)
	DeleteEntry(ctx context.Context, id string) error
}

// CalculationRecord is one converged (or failed) VASP calculation attached
// to an entry.
type CalculationRecord struct {
	ID      string
	EntryID string
	// Label names the calculation preset, e.g. "static" or "standard".
	Label       string
	Composition string
	Energy      float64
	EnergyPA    float64
	Magmom      float64
	BandGap     float64
	Converged   bool
	// Settings is the INI-rendered calculation settings snapshot.
	Settings string
	// Path is the calculation directory on the archive filesystem.
	Path      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalculationStore persists calculations.
type CalculationStore interface {
	PutCalculation(ctx context.Context, record CalculationRecord) error
	GetCalculation(ctx context.Context, id string) (CalculationRecord, error)
	ListCalculations(ctx context.Context, query Query) ([]CalculationRecord, int64, error)
	ListCalculationsByEntry(ctx context.Context, entryID string) ([]CalculationRecord, error)
}

// FormationRecord is a referenced formation energy with its hull distance.
type FormationRecord struct {
	ID            string
	EntryID       string
	CalculationID string
	Composition   string
	// Fit names the chemical potential fit the energy is referenced to.
	Fit string
	// DeltaE is the formation energy in eV/atom.
	DeltaE float64
	// Stability is the distance from the convex hull in eV/atom.
	// HasStability guards unset values.
	Stability    float64
	HasStability bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FormationStore persists formation energies.
type FormationStore interface {
	PutFormation(ctx context.Context, record FormationRecord) error
	GetFormation(ctx context.Context, id string) (FormationRecord, error)
	ListFormations(ctx context.Context, query Query) ([]FormationRecord, int64, error)
	// ListHullPhases returns the lowest formation energy per composition
	// for a fit, the input to hull construction.
	ListHullPhases(ctx context.Context, fit string) ([]FormationRecord, error)
}

// PotentialRecord is one pseudopotential dataset header.
type PotentialRecord struct {
	ID         string
	Element    string
	Name       string
	Date       string
	XC         string
	ElecConfig string
	Enmax      float64
	Enmin      float64
	Paw        bool
	Us         bool
	Gw         bool
	Release    string
	Potcar     string
	CreatedAt  time.Time
}

// PotentialStore persists pseudopotentials with get-or-create semantics.
type PotentialStore interface {
	// PutPotential inserts the record unless an identical header already
	// exists, returning the stored record either way.
	PutPotential(ctx context.Context, record PotentialRecord) (PotentialRecord, error)
	GetPotential(ctx context.Context, id string) (PotentialRecord, error)
	ListPotentials(ctx context.Context, query Query) ([]PotentialRecord, int64, error)
}

// HubbardRecord is one DFT+U parameterization.
type HubbardRecord struct {
	ID         string
	Element    string
	Ligand     string
	Convention string
	L          int
	U          float64
	// OxidationState is optional; HasOxidationState guards it.
	OxidationState    float64
	HasOxidationState bool
	CreatedAt         time.Time
}

// HubbardStore persists Hubbard corrections with get-or-create semantics.
type HubbardStore interface {
	PutHubbard(ctx context.Context, record HubbardRecord) (HubbardRecord, error)
	GetHubbard(ctx context.Context, id string) (HubbardRecord, error)
	ListHubbards(ctx context.Context, query Query) ([]HubbardRecord, int64, error)
}

// Task states.
const (
	TaskStatePending = "pending"
	TaskStateLeased  = "leased"
	TaskStateDone    = "done"
	TaskStateDead    = "dead"
)

// Task kinds.
const (
	TaskKindFormation = "formation"
	TaskKindStability = "stability"
)

// TaskRecord is one unit of background work against an entry.
type TaskRecord struct {
	ID          string
	Kind        string
	EntryID     string
	State       string
	Priority    int
	Attempts    int
	MaxAttempts int
	// NotBefore delays retries; zero means runnable immediately.
	NotBefore time.Time
	// LeaseExpiresAt is set while the task is leased.
	LeaseExpiresAt time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TaskStore persists background tasks with lease-based claiming.
type TaskStore interface {
	PutTask(ctx context.Context, record TaskRecord) error
	GetTask(ctx context.Context, id string) (TaskRecord, error)
	ListTasks(ctx context.Context, query Query) ([]TaskRecord, int64, error)
	// ClaimTask atomically leases the highest-priority runnable pending
	// task of one of the given kinds. Expired leases are reclaimable.
	// ErrNotFound means nothing is runnable.
	ClaimTask(ctx context.Context, kinds []string, lease time.Duration, now time.Time) (TaskRecord, error)
	// CompleteTask marks a leased task done.
	CompleteTask(ctx context.Context, id string, now time.Time) error
	// FailTask records a failed attempt. The task returns to pending with
	// a retry delay, or moves to dead once attempts reach MaxAttempts.
	FailTask(ctx context.Context, id string, taskErr string, retryAfter time.Duration, now time.Time) (TaskRecord, error)
}

// Stats summarizes database contents for the stats endpoint.
type Stats struct {
	Entries      int64
	Calculations int64
	// StandardFormations counts formation energies under the standard fit.
	StandardFormations int64
	Potentials         int64
	Hubbards           int64
	TasksPending       int64
	TasksDead          int64
}

// StatsStore reports aggregate counts.
type StatsStore interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Store is the full persistence surface backing the services.
type Store interface {
	EntryStore
	CalculationStore
	FormationStore
	PotentialStore
	HubbardStore
	TaskStore
	StatsStore
	Close() error
}
