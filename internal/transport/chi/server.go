// Package chi exposes search and ingestion over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/request"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/result"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/health"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/ingest"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/usage"
	"github.com/MatiasPrietoHernan/Retriever/internal/version"
)

// TenantHeader selects the collection for POST /api/search.
const TenantHeader = "X-Tenant"

const maxBodyBytes = 1 << 20

// Searcher runs listing searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// Ingester runs a synchronous ingestion.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (ingest.Report, error)
}

// Jobs runs and tracks async ingestions.
type Jobs interface {
	Submit(ctx context.Context, req ingest.Request) (task.Task, error)
	Get(ctx context.Context, id string) (task.Task, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period usage.Period) usage.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Options holds request defaults.
type Options struct {
	DefaultTenant string
	DefaultLimit  int
	MaxLimit      int
}

// Server serves the HTTP API.
type Server struct {
	search        Searcher
	ingest        Ingester
	jobs          Jobs
	health        HealthChecker
	usage         UsageReporter
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	ingester Ingester,
	jobs Jobs,
	healthSvc HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = request.MaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = request.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search: search,
		ingest: ingester,
		jobs:   jobs,
		health: healthSvc,
		opts:   opts,
		logger: logger,
	}
	for _, m := range errorStatuses {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(m.sentinel, m.status, m.code))
	}
	return s
}

// WithUsage enables GET /api/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/tenants/{tenant}/search", s.TenantSearch)
		r.Post("/ingest", s.Ingest)
		r.Post("/ingest/async", s.IngestAsync)
		r.Get("/ingest/tasks/{task_id}", s.GetTask)
		r.Get("/health", s.HealthCheck)
		if s.usage != nil {
			r.Get("/usage", s.GetUsage)
		}
	})
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tenant := r.Header.Get(TenantHeader)
	if tenant == "" {
		tenant = body.Tenant
	}
	s.runSearch(w, r, tenant, body.Query, body.operationType(), body.priceMax(), body.Limit)
}

// TenantSearch handles GET /api/tenants/{tenant}/search.
func (s *Server) TenantSearch(w http.ResponseWriter, r *http.Request) {
	var tenant string
	err := runtime.BindStyledParameterWithOptions("simple", "tenant", chi.URLParam(r, "tenant"), &tenant,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid format for parameter tenant: %s", err))
		return
	}

	var (
		query         string
		operationType *string
		priceMax      *float64
		limit         *int
	)
	q := r.URL.Query()
	for _, p := range []struct {
		name     string
		required bool
		dest     any
	}{
		{"query", true, &query},
		{"operation_type", false, &operationType},
		{"price_max", false, &priceMax},
		{"limit", false, &limit},
	} {
		if err := runtime.BindQueryParameter("form", true, p.required, p.name, q, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest,
				fmt.Sprintf("Invalid format for parameter %s: %s", p.name, err))
			return
		}
	}

	op := ""
	if operationType != nil {
		op = *operationType
	}
	s.runSearch(w, r, tenant, query, op, priceMax, limit)
}

func (s *Server) runSearch(
	w http.ResponseWriter, r *http.Request,
	tenant, query, operationType string, priceMax *float64, limit *int,
) {
	if tenant == "" {
		tenant = s.opts.DefaultTenant
	}
	n := s.opts.DefaultLimit
	if limit != nil {
		n = *limit
	}
	if n < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "limit must not be negative")
		return
	}

	req, err := request.New(tenant, query, filter.ForListings(operationType, priceMax), n, s.opts.MaxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToDTO(&results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{Results: items, Count: len(items)})
}

// Ingest handles POST /api/ingest. The call blocks until the run ends.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeIngest(w, r)
	if !ok {
		return
	}

	rep, err := s.ingest.Run(r.Context(), req)
	if err != nil {
		s.writeIngestFailure(w, rep, err)
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(rep.Tokens))
	writeJSON(w, http.StatusOK, IngestResponse{Message: rep.Message, Report: rep})
}

// IngestAsync handles POST /api/ingest/async.
func (s *Server) IngestAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeIngest(w, r)
	if !ok {
		return
	}

	t, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{
		TaskID:   t.ID,
		Status:   string(t.Status),
		CheckURL: "/api/ingest/tasks/" + t.ID,
	})
}

// GetTask handles GET /api/ingest/tasks/{task_id}.
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "task_id", chi.URLParam(r, "task_id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid format for parameter task_id: %s", err))
		return
	}

	t, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToDTO(t))
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == health.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:     string(report.Status),
		Collection: report.Collection,
		Checks:     checks,
		Version:    version.Version,
	})
}

// GetUsage handles GET /api/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid format for parameter period: %s", err))
		return
	}
	var p string
	if raw != nil {
		p = *raw
	}
	period, err := usage.ParsePeriod(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, usageToDTO(s.usage.GetReport(r.Context(), period)))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeIngest(w http.ResponseWriter, r *http.Request) (ingest.Request, bool) {
	var body IngestRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return ingest.Request{}, false
	}
	req := ingest.Request{Tenant: body.Company, APIKey: body.TokkoAPIKey}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return ingest.Request{}, false
	}
	return req, true
}

// writeIngestFailure maps the failure like any domain error and attaches the report.
func (s *Server) writeIngestFailure(w http.ResponseWriter, rep ingest.Report, err error) {
	status, code := http.StatusInternalServerError, CodeInternalError
	for _, m := range errorStatuses {
		if errors.Is(err, m.sentinel) {
			status, code = m.status, m.code
			break
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("ingestion failed", zap.String("tenant", rep.Tenant), zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: rep.Message, Report: &rep})
}

// errorStatuses maps sentinels to responses. The first match wins.
var errorStatuses = []struct {
	sentinel error
	status   int
	code     ErrorCode
}{
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrNormalization, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrIngestionInProgress, http.StatusConflict, CodeIngestionInProgress},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError},
	{domain.ErrStore, http.StatusBadGateway, CodeStoreError},
	{domain.ErrVectorDimMismatch, http.StatusBadGateway, CodeStoreError},
	{domain.ErrTransport, http.StatusBadGateway, CodeUpstreamError},
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrIngestionInProgress,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrStore,
		domain.ErrTransport,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if status == http.StatusBadRequest {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
