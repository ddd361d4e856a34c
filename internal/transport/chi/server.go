package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docpipe/internal/db"
	"github.com/kailas-cloud/docpipe/internal/domain"
	domquery "github.com/kailas-cloud/docpipe/internal/domain/query"
	healthuc "github.com/kailas-cloud/docpipe/internal/usecase/health"
	queryuc "github.com/kailas-cloud/docpipe/internal/usecase/query"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeExpansionOverflow = "expansion_overflow"
	codeStoreUnavailable  = "store_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body shape.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// queryRequest is the POST /initiatives/{initiative}/query body.
type queryRequest struct {
	Categories   []int     `json:"categories"`
	Exclusions   []int     `json:"exclusions,omitempty"`
	LoopValues   []float64 `json:"loop_values,omitempty"`
	Ceiling      float64   `json:"ceiling"`
	AllowDiskUse bool      `json:"allow_disk_use,omitempty"`
}

// queryResponse wraps the assembled groups.
type queryResponse struct {
	Initiative string           `json:"initiative"`
	Groups     []domquery.Group `json:"groups"`
	Total      int              `json:"total"`
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server exposes the query pipeline over HTTP.
type Server struct {
	query  *queryuc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(query *queryuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{query: query, health: health, logger: logger}
}

// Routes registers all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/initiatives/{initiative}/query", s.QueryContacts)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// QueryContacts handles POST /initiatives/{initiative}/query.
func (s *Server) QueryContacts(w http.ResponseWriter, r *http.Request) {
	initiative := chi.URLParam(r, "initiative")

	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := domquery.NewRequest(
		initiative, body.Categories, body.Exclusions, body.LoopValues, body.Ceiling, body.AllowDiskUse,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	groups, err := s.query.Execute(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Initiative: initiative,
		Groups:     groups,
		Total:      len(groups),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	var dbErr *db.Error
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, codeValidationFailed, safeDomainMessage(err))
	case errors.Is(err, domain.ErrExpansionOverflow):
		writeError(w, http.StatusUnprocessableEntity, codeExpansionOverflow, overflowMessage(err))
	case errors.Is(err, domain.ErrSpillUnavailable):
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, safeDomainMessage(err))
	case errors.Is(err, domain.ErrStoreUnavailable), errors.As(err, &dbErr):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "document store unavailable")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

// overflowMessage exposes the overflow sizes so the caller can narrow the
// filter or retry with disk use.
func overflowMessage(err error) string {
	var overflow *domain.ExpansionOverflowError
	if errors.As(err, &overflow) {
		return overflow.Error()
	}
	return domain.ErrExpansionOverflow.Error()
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidQuery,
		domain.ErrExpansionOverflow,
		domain.ErrStoreUnavailable,
		domain.ErrSpillUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
