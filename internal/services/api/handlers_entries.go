package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/oqmd/qmdb/internal/analysis/symmetry"
	"github.com/oqmd/qmdb/internal/materials"
	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
	"github.com/oqmd/qmdb/internal/platform/id"
	"github.com/oqmd/qmdb/internal/platform/pagination"
	"github.com/oqmd/qmdb/internal/storage"
)

var entryOrder = pagination.OrderByConfig{
	Default: "id",
	Allowed: withDescending("id", "name", "natoms", "nelements", "nsites", "volume", "spacegroup", "created_at"),
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.entryFilter, entryOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListEntries(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Entry, 0, len(records))
	for _, record := range records {
		results = append(results, entryFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	calculations, err := s.store.ListCalculationsByEntry(r.Context(), record.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, entryDetail(record, calculations))
}

// entryDetail renders an entry with its calculations and, when the space
// group is known, the derived crystal system and symbol.
func entryDetail(record storage.EntryRecord, calculations []storage.CalculationRecord) EntryDetail {
	detail := EntryDetail{
		Entry:        entryFromRecord(record),
		Poscar:       record.Poscar,
		Calculations: make([]Calculation, 0, len(calculations)),
	}
	for _, calculation := range calculations {
		detail.Calculations = append(detail.Calculations, calculationFromRecord(calculation))
	}
	if record.Spacegroup != 0 {
		if system, err := symmetry.SystemForNumber(record.Spacegroup); err == nil {
			detail.CrystalSystem = string(system)
		}
		if symbol, err := symmetry.SymbolForNumber(record.Spacegroup); err == nil {
			detail.SpacegroupSymbol = symbol
		}
	}
	return detail
}

// createEntryRequest is the body of POST /api/entries.
type createEntryRequest struct {
	Path       string `json:"path"`
	Poscar     string `json:"poscar"`
	Label      string `json:"label"`
	Spacegroup int    `json:"spacegroup"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var body createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeAPIInvalidBody, "decode request body", err))
		return
	}
	if strings.TrimSpace(body.Path) == "" {
		writeError(w, r, apperrors.New(apperrors.CodeEntryEmptyPath, "path is required"))
		return
	}
	if strings.TrimSpace(body.Poscar) == "" {
		writeError(w, r, apperrors.New(apperrors.CodeEntryNoStructure, "poscar is required"))
		return
	}

	if body.Spacegroup != 0 {
		if _, err := symmetry.SystemForNumber(body.Spacegroup); err != nil {
			writeError(w, r, err)
			return
		}
	}

	structure, _, err := materials.ReadPoscar(strings.NewReader(body.Poscar))
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := entryRecordFromStructure(body.Path, body.Label, body.Poscar, body.Spacegroup, structure)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.PutEntry(r.Context(), record); err != nil {
		writeError(w, r, storeError(err))
		return
	}
	now := time.Now().UTC()
	task := storage.TaskRecord{
		ID:          id.New(),
		Kind:        storage.TaskKindFormation,
		EntryID:     record.ID,
		State:       storage.TaskStatePending,
		MaxAttempts: 5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutTask(r.Context(), task); err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusCreated, entryDetail(record, nil))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, storeError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// entryRecordFromStructure derives the stored entry fields from a parsed
// structure.
func entryRecordFromStructure(path, label, poscar string, spacegroup int, structure materials.Structure) (storage.EntryRecord, error) {
	composition, err := structure.Composition()
	if err != nil {
		return storage.EntryRecord{}, err
	}
	now := time.Now().UTC()
	return storage.EntryRecord{
		ID:          id.New(),
		Path:        strings.TrimSpace(path),
		Name:        composition.Name(),
		Generic:     composition.Generic(),
		ElementList: elementList(composition),
		NAtoms:      int(composition.NAtoms()),
		NElements:   composition.NElements(),
		NSites:      structure.NSites(),
		Volume:      structure.Lattice.Volume(),
		Spacegroup:  spacegroup,
		Poscar:      poscar,
		Label:       strings.TrimSpace(label),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// elementList renders the element membership string, e.g. "Cl_Na_".
func elementList(composition materials.Composition) string {
	var b strings.Builder
	for _, element := range composition.Elements() {
		b.WriteString(element)
		b.WriteString("_")
	}
	return b.String()
}

// storeError maps storage sentinels onto domain codes.
func storeError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, "record not found", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Wrap(apperrors.CodeAlreadyExists, "record already exists", err)
	default:
		return err
	}
}

func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	elements := materials.Elements()
	results := make([]Element, 0, len(elements))
	for _, element := range elements {
		results = append(results, elementFromTable(element))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, int64(len(results)), len(results), 0, results))
}

func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	element, err := materials.ElementBySymbol(r.PathValue("symbol"))
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeNotFound, "unknown element", err))
		return
	}
	writeResponse(w, r, http.StatusOK, elementFromTable(element))
}
