// Package api serves the REST query surface of the materials database.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
	"github.com/oqmd/qmdb/internal/platform/pagination"
	"github.com/oqmd/qmdb/internal/platform/timeouts"
	"github.com/oqmd/qmdb/internal/services/api/filter"
	"github.com/oqmd/qmdb/internal/storage"
)

// defaultPageLimits is the DRF-style page sizing for every list endpoint.
var defaultPageLimits = pagination.LimitConfig{Default: 100, Max: 500}

// Config defines the inputs for the API server.
type Config struct {
	HTTPAddr string
	Auth     AuthConfig
}

// Server hosts the REST API over a materials store.
type Server struct {
	store      storage.Store
	auth       AuthConfig
	httpAddr   string
	httpServer *http.Server

	entryFilter       *filter.Schema
	calculationFilter *filter.Schema
	formationFilter   *filter.Schema
	potentialFilter   *filter.Schema
	hubbardFilter     *filter.Schema
	taskFilter        *filter.Schema
}

// NewServer builds a configured API server.
func NewServer(config Config, store storage.Store) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	s := &Server{
		store:    store,
		auth:     config.Auth,
		httpAddr: httpAddr,
	}

	var err error
	if s.entryFilter, err = filter.EntrySchema(); err != nil {
		return nil, err
	}
	if s.calculationFilter, err = filter.CalculationSchema(); err != nil {
		return nil, err
	}
	if s.formationFilter, err = filter.FormationSchema(); err != nil {
		return nil, err
	}
	if s.potentialFilter, err = filter.PotentialSchema(); err != nil {
		return nil, err
	}
	if s.hubbardFilter, err = filter.HubbardSchema(); err != nil {
		return nil, err
	}
	if s.taskFilter, err = filter.TaskSchema(); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.requireAuth(s.handleCreateEntry))
	mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.requireAuth(s.handleDeleteEntry))

	mux.HandleFunc("GET /api/calculations", s.handleListCalculations)
	mux.HandleFunc("GET /api/calculations/{id}", s.handleGetCalculation)

	mux.HandleFunc("GET /api/formationenergies", s.handleListFormations)
	mux.HandleFunc("GET /api/formationenergies/{id}", s.handleGetFormation)

	mux.HandleFunc("GET /api/potentials", s.handleListPotentials)
	mux.HandleFunc("GET /api/potentials/{id}", s.handleGetPotential)

	mux.HandleFunc("GET /api/hubbards", s.handleListHubbards)
	mux.HandleFunc("GET /api/hubbards/{id}", s.handleGetHubbard)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.requireAuth(s.handleCreateTask))
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	mux.HandleFunc("GET /api/elements", s.handleListElements)
	mux.HandleFunc("GET /api/elements/{symbol}", s.handleGetElement)

	return spanMiddleware(mux)
}

// spanMiddleware wraps each request in a trace span.
func spanMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("qmdb/api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
		span.End()
	})
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("api server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("api listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// listQuery assembles a storage query from the request's filter, order_by,
// limit and offset parameters.
func listQuery(r *http.Request, schema *filter.Schema, order pagination.OrderByConfig) (storage.Query, error) {
	values := r.URL.Query()

	limit, err := intParam(values.Get("limit"))
	if err != nil {
		return storage.Query{}, apperrors.New(apperrors.CodeAPIInvalidPagination,
			fmt.Sprintf("invalid limit %q", values.Get("limit")))
	}
	offset, err := intParam(values.Get("offset"))
	if err != nil {
		return storage.Query{}, apperrors.New(apperrors.CodeAPIInvalidPagination,
			fmt.Sprintf("invalid offset %q", values.Get("offset")))
	}
	limit = pagination.ClampLimit(limit, defaultPageLimits)
	offset = pagination.ClampOffset(offset)

	orderBy, err := pagination.NormalizeOrderBy(values.Get("order_by"), order)
	if err != nil {
		return storage.Query{}, apperrors.Wrap(apperrors.CodeAPIInvalidOrderBy,
			"invalid order_by", err)
	}

	condition, err := schema.Parse(values.Get("filter"))
	if err != nil {
		return storage.Query{}, err
	}

	return storage.Query{
		Where:   condition.Clause,
		Args:    condition.Params,
		OrderBy: orderColumn(orderBy),
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func intParam(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// orderColumn converts a "-field" order token into SQL "field DESC".
func orderColumn(orderBy string) string {
	if field, ok := strings.CutPrefix(orderBy, "-"); ok {
		return field + " DESC"
	}
	return orderBy
}

// withDescending expands an order_by allow-list with "-field" variants.
func withDescending(fields ...string) []string {
	allowed := make([]string, 0, 2*len(fields))
	for _, field := range fields {
		allowed = append(allowed, field, "-"+field)
	}
	return allowed
}
