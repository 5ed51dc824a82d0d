package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
	"github.com/oqmd/qmdb/internal/platform/id"
	"github.com/oqmd/qmdb/internal/platform/pagination"
	"github.com/oqmd/qmdb/internal/storage"
)

var calculationOrder = pagination.OrderByConfig{
	Default: "id",
	Allowed: withDescending("id", "label", "energy_pa", "band_gap", "created_at"),
}

func (s *Server) handleListCalculations(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.calculationFilter, calculationOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListCalculations(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Calculation, 0, len(records))
	for _, record := range records {
		results = append(results, calculationFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetCalculation(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetCalculation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	writeResponse(w, r, http.StatusOK, calculationFromRecord(record))
}

var formationOrder = pagination.OrderByConfig{
	Default: "id",
	Allowed: withDescending("id", "composition", "delta_e", "stability", "created_at"),
}

func (s *Server) handleListFormations(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.formationFilter, formationOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListFormations(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Formation, 0, len(records))
	for _, record := range records {
		results = append(results, formationFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetFormation(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetFormation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	writeResponse(w, r, http.StatusOK, formationFromRecord(record))
}

var potentialOrder = pagination.OrderByConfig{
	Default: "element",
	Allowed: withDescending("element", "name", "enmax", "xc"),
}

func (s *Server) handleListPotentials(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.potentialFilter, potentialOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListPotentials(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Potential, 0, len(records))
	for _, record := range records {
		results = append(results, potentialFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetPotential(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetPotential(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	writeResponse(w, r, http.StatusOK, potentialFromRecord(record))
}

var hubbardOrder = pagination.OrderByConfig{
	Default: "element",
	Allowed: withDescending("element", "hubbard_u", "hubbard_l"),
}

func (s *Server) handleListHubbards(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.hubbardFilter, hubbardOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListHubbards(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Hubbard, 0, len(records))
	for _, record := range records {
		results = append(results, hubbardFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetHubbard(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetHubbard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	writeResponse(w, r, http.StatusOK, hubbardFromRecord(record))
}

var taskOrder = pagination.OrderByConfig{
	Default: "created_at",
	Allowed: withDescending("created_at", "priority", "state", "kind"),
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r, s.taskFilter, taskOrder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, total, err := s.store.ListTasks(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]Task, 0, len(records))
	for _, record := range records {
		results = append(results, taskFromRecord(record))
	}
	writeResponse(w, r, http.StatusOK,
		newListEnvelope(r, total, query.Limit, query.Offset, results))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, storeError(err))
		return
	}
	writeResponse(w, r, http.StatusOK, taskFromRecord(record))
}

// createTaskRequest is the body of POST /api/tasks.
type createTaskRequest struct {
	Kind        string `json:"kind"`
	EntryID     string `json:"entry_id"`
	Priority    int    `json:"priority"`
	MaxAttempts int    `json:"max_attempts"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeAPIInvalidBody, "decode request body", err))
		return
	}
	kind := strings.TrimSpace(body.Kind)
	if kind != storage.TaskKindFormation && kind != storage.TaskKindStability {
		writeError(w, r, apperrors.New(apperrors.CodeTaskInvalidKind,
			fmt.Sprintf("unknown task kind %q", body.Kind)))
		return
	}
	entryID := strings.TrimSpace(body.EntryID)
	if entryID == "" {
		writeError(w, r, apperrors.New(apperrors.CodeAPIInvalidBody, "entry_id is required"))
		return
	}
	if _, err := s.store.GetEntry(r.Context(), entryID); err != nil {
		writeError(w, r, storeError(err))
		return
	}
	if body.MaxAttempts <= 0 {
		body.MaxAttempts = 5
	}

	now := time.Now().UTC()
	task := storage.TaskRecord{
		ID:          id.New(),
		Kind:        kind,
		EntryID:     entryID,
		State:       storage.TaskStatePending,
		Priority:    body.Priority,
		MaxAttempts: body.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutTask(r.Context(), task); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusCreated, taskFromRecord(task))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, StatsResponse{
		Entries:            stats.Entries,
		Calculations:       stats.Calculations,
		StandardFormations: stats.StandardFormations,
		Potentials:         stats.Potentials,
		Hubbards:           stats.Hubbards,
		TasksPending:       stats.TasksPending,
		TasksDead:          stats.TasksDead,
	})
}
