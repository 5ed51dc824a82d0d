package api

import (
	"encoding/xml"
	"time"

	"github.com/oqmd/qmdb/internal/materials"
	"github.com/oqmd/qmdb/internal/storage"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// Entry is the wire shape of one structure entry.
type Entry struct {
	XMLName    xml.Name `json:"-" xml:"entry" yaml:"-"`
	ID         string   `json:"id" xml:"id" yaml:"id"`
	Path       string   `json:"path" xml:"path" yaml:"path"`
	Name       string   `json:"name" xml:"name" yaml:"name"`
	Generic    string   `json:"generic" xml:"generic" yaml:"generic"`
	NAtoms     int      `json:"natoms" xml:"natoms" yaml:"natoms"`
	NElements  int      `json:"nelements" xml:"nelements" yaml:"nelements"`
	NSites     int      `json:"nsites" xml:"nsites" yaml:"nsites"`
	Volume     float64  `json:"volume" xml:"volume" yaml:"volume"`
	Spacegroup int      `json:"spacegroup,omitempty" xml:"spacegroup,omitempty" yaml:"spacegroup,omitempty"`
	Label      string   `json:"label,omitempty" xml:"label,omitempty" yaml:"label,omitempty"`
	CreatedAt  string   `json:"created_at" xml:"created_at" yaml:"created_at"`
	UpdatedAt  string   `json:"updated_at" xml:"updated_at" yaml:"updated_at"`
}

func entryFromRecord(record storage.EntryRecord) Entry {
	return Entry{
		ID:         record.ID,
		Path:       record.Path,
		Name:       record.Name,
		Generic:    record.Generic,
		NAtoms:     record.NAtoms,
		NElements:  record.NElements,
		NSites:     record.NSites,
		Volume:     record.Volume,
		Spacegroup: record.Spacegroup,
		Label:      record.Label,
		CreatedAt:  formatTime(record.CreatedAt),
		UpdatedAt:  formatTime(record.UpdatedAt),
	}
}

// EntryDetail extends Entry with the structure text, the symmetry derived
// from the space group, and the entry's calculations.
type EntryDetail struct {
	Entry            `yaml:",inline"`
	CrystalSystem    string        `json:"crystal_system,omitempty" xml:"crystal_system,omitempty" yaml:"crystal_system,omitempty"`
	SpacegroupSymbol string        `json:"spacegroup_symbol,omitempty" xml:"spacegroup_symbol,omitempty" yaml:"spacegroup_symbol,omitempty"`
	Poscar           string        `json:"poscar,omitempty" xml:"poscar,omitempty" yaml:"poscar,omitempty"`
	Calculations     []Calculation `json:"calculations" xml:"calculations>calculation" yaml:"calculations"`
}

// Calculation is the wire shape of one calculation.
type Calculation struct {
	XMLName     xml.Name `json:"-" xml:"calculation" yaml:"-"`
	ID          string   `json:"id" xml:"id" yaml:"id"`
	EntryID     string   `json:"entry_id" xml:"entry_id" yaml:"entry_id"`
	Label       string   `json:"label" xml:"label" yaml:"label"`
	Composition string   `json:"composition" xml:"composition" yaml:"composition"`
	Energy      float64  `json:"energy" xml:"energy" yaml:"energy"`
	EnergyPA    float64  `json:"energy_pa" xml:"energy_pa" yaml:"energy_pa"`
	Magmom      float64  `json:"magmom" xml:"magmom" yaml:"magmom"`
	BandGap     float64  `json:"band_gap" xml:"band_gap" yaml:"band_gap"`
	Converged   bool     `json:"converged" xml:"converged" yaml:"converged"`
	Settings    string   `json:"settings,omitempty" xml:"settings,omitempty" yaml:"settings,omitempty"`
	Path        string   `json:"path,omitempty" xml:"path,omitempty" yaml:"path,omitempty"`
	CreatedAt   string   `json:"created_at" xml:"created_at" yaml:"created_at"`
	UpdatedAt   string   `json:"updated_at" xml:"updated_at" yaml:"updated_at"`
}

func calculationFromRecord(record storage.CalculationRecord) Calculation {
	return Calculation{
		ID:          record.ID,
		EntryID:     record.EntryID,
		Label:       record.Label,
		Composition: record.Composition,
		Energy:      record.Energy,
		EnergyPA:    record.EnergyPA,
		Magmom:      record.Magmom,
		BandGap:     record.BandGap,
		Converged:   record.Converged,
		Settings:    record.Settings,
		Path:        record.Path,
		CreatedAt:   formatTime(record.CreatedAt),
		UpdatedAt:   formatTime(record.UpdatedAt),
	}
}

// Formation is the wire shape of one formation energy.
type Formation struct {
	XMLName       xml.Name `json:"-" xml:"formationenergy" yaml:"-"`
	ID            string   `json:"id" xml:"id" yaml:"id"`
	EntryID       string   `json:"entry_id" xml:"entry_id" yaml:"entry_id"`
	CalculationID string   `json:"calculation_id,omitempty" xml:"calculation_id,omitempty" yaml:"calculation_id,omitempty"`
	Composition   string   `json:"composition" xml:"composition" yaml:"composition"`
	Fit           string   `json:"fit" xml:"fit" yaml:"fit"`
	DeltaE        float64  `json:"delta_e" xml:"delta_e" yaml:"delta_e"`
	Stability     *float64 `json:"stability" xml:"stability,omitempty" yaml:"stability"`
	CreatedAt     string   `json:"created_at" xml:"created_at" yaml:"created_at"`
	UpdatedAt     string   `json:"updated_at" xml:"updated_at" yaml:"updated_at"`
}

func formationFromRecord(record storage.FormationRecord) Formation {
	formation := Formation{
		ID:            record.ID,
		EntryID:       record.EntryID,
		CalculationID: record.CalculationID,
		Composition:   record.Composition,
		Fit:           record.Fit,
		DeltaE:        record.DeltaE,
		CreatedAt:     formatTime(record.CreatedAt),
		UpdatedAt:     formatTime(record.UpdatedAt),
	}
	if record.HasStability {
		stability := record.Stability
		formation.Stability = &stability
	}
	return formation
}

// Potential is the wire shape of one pseudopotential header.
type Potential struct {
	XMLName    xml.Name `json:"-" xml:"potential" yaml:"-"`
	ID         string   `json:"id" xml:"id" yaml:"id"`
	Element    string   `json:"element" xml:"element" yaml:"element"`
	Name       string   `json:"name" xml:"name" yaml:"name"`
	Date       string   `json:"date,omitempty" xml:"date,omitempty" yaml:"date,omitempty"`
	XC         string   `json:"xc" xml:"xc" yaml:"xc"`
	ElecConfig string   `json:"elec_config,omitempty" xml:"elec_config,omitempty" yaml:"elec_config,omitempty"`
	Enmax      float64  `json:"enmax" xml:"enmax" yaml:"enmax"`
	Enmin      float64  `json:"enmin" xml:"enmin" yaml:"enmin"`
	Paw        bool     `json:"paw" xml:"paw" yaml:"paw"`
	Us         bool     `json:"us" xml:"us" yaml:"us"`
	Gw         bool     `json:"gw" xml:"gw" yaml:"gw"`
	Release    string   `json:"release" xml:"release" yaml:"release"`
}

func potentialFromRecord(record storage.PotentialRecord) Potential {
	return Potential{
		ID:         record.ID,
		Element:    record.Element,
		Name:       record.Name,
		Date:       record.Date,
		XC:         record.XC,
		ElecConfig: record.ElecConfig,
		Enmax:      record.Enmax,
		Enmin:      record.Enmin,
		Paw:        record.Paw,
		Us:         record.Us,
		Gw:         record.Gw,
		Release:    record.Release,
	}
}

// Hubbard is the wire shape of one Hubbard correction.
type Hubbard struct {
	XMLName        xml.Name `json:"-" xml:"hubbard" yaml:"-"`
	ID             string   `json:"id" xml:"id" yaml:"id"`
	Element        string   `json:"element" xml:"element" yaml:"element"`
	Ligand         string   `json:"ligand,omitempty" xml:"ligand,omitempty" yaml:"ligand,omitempty"`
	Convention     string   `json:"convention,omitempty" xml:"convention,omitempty" yaml:"convention,omitempty"`
	L              int      `json:"hubbard_l" xml:"hubbard_l" yaml:"hubbard_l"`
	U              float64  `json:"hubbard_u" xml:"hubbard_u" yaml:"hubbard_u"`
	OxidationState *float64 `json:"oxidation_state" xml:"oxidation_state,omitempty" yaml:"oxidation_state"`
}

func hubbardFromRecord(record storage.HubbardRecord) Hubbard {
	hubbard := Hubbard{
		ID:         record.ID,
		Element:    record.Element,
		Ligand:     record.Ligand,
		Convention: record.Convention,
		L:          record.L,
		U:          record.U,
	}
	if record.HasOxidationState {
		oxidation := record.OxidationState
		hubbard.OxidationState = &oxidation
	}
	return hubbard
}

// Task is the wire shape of one background task.
type Task struct {
	XMLName     xml.Name `json:"-" xml:"task" yaml:"-"`
	ID          string   `json:"id" xml:"id" yaml:"id"`
	Kind        string   `json:"kind" xml:"kind" yaml:"kind"`
	EntryID     string   `json:"entry_id,omitempty" xml:"entry_id,omitempty" yaml:"entry_id,omitempty"`
	State       string   `json:"state" xml:"state" yaml:"state"`
	Priority    int      `json:"priority" xml:"priority" yaml:"priority"`
	Attempts    int      `json:"attempts" xml:"attempts" yaml:"attempts"`
	MaxAttempts int      `json:"max_attempts" xml:"max_attempts" yaml:"max_attempts"`
	LastError   string   `json:"last_error,omitempty" xml:"last_error,omitempty" yaml:"last_error,omitempty"`
	CreatedAt   string   `json:"created_at" xml:"created_at" yaml:"created_at"`
	UpdatedAt   string   `json:"updated_at" xml:"updated_at" yaml:"updated_at"`
}

func taskFromRecord(record storage.TaskRecord) Task {
	return Task{
		ID:          record.ID,
		Kind:        record.Kind,
		EntryID:     record.EntryID,
		State:       record.State,
		Priority:    record.Priority,
		Attempts:    record.Attempts,
		MaxAttempts: record.MaxAttempts,
		LastError:   record.LastError,
		CreatedAt:   formatTime(record.CreatedAt),
		UpdatedAt:   formatTime(record.UpdatedAt),
	}
}

// Element is the wire shape of one chemical element.
type Element struct {
	XMLName xml.Name `json:"-" xml:"element" yaml:"-"`
	Z       int      `json:"z" xml:"z" yaml:"z"`
	Symbol  string   `json:"symbol" xml:"symbol" yaml:"symbol"`
	Name    string   `json:"name" xml:"name" yaml:"name"`
	Mass    float64  `json:"mass" xml:"mass" yaml:"mass"`
	// Group is 0 for the f-block.
	Group  int `json:"group" xml:"group" yaml:"group"`
	Period int `json:"period" xml:"period" yaml:"period"`
}

func elementFromTable(element materials.Element) Element {
	return Element{
		Z:      element.Z,
		Symbol: element.Symbol,
		Name:   element.Name,
		Mass:   element.Mass,
		Group:  element.Group,
		Period: element.Period,
	}
}

// StatsResponse is the wire shape of the stats endpoint.
type StatsResponse struct {
	XMLName            xml.Name `json:"-" xml:"stats" yaml:"-"`
	Entries            int64    `json:"entries" xml:"entries" yaml:"entries"`
	Calculations       int64    `json:"calculations" xml:"calculations" yaml:"calculations"`
	StandardFormations int64    `json:"formation_energies" xml:"formation_energies" yaml:"formation_energies"`
	Potentials         int64    `json:"potentials" xml:"potentials" yaml:"potentials"`
	Hubbards           int64    `json:"hubbards" xml:"hubbards" yaml:"hubbards"`
	TasksPending       int64    `json:"tasks_pending" xml:"tasks_pending" yaml:"tasks_pending"`
	TasksDead          int64    `json:"tasks_dead" xml:"tasks_dead" yaml:"tasks_dead"`
}
