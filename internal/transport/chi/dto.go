package chi

import (
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/result"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/ingest"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/usage"
)

// ErrorCode is the machine-readable error class in error responses.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeNotFound               ErrorCode = "not_found"
	CodeIngestionInProgress    ErrorCode = "ingestion_in_progress"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeStoreError             ErrorCode = "store_error"
	CodeUpstreamError          ErrorCode = "upstream_error"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Report  *ingest.Report `json:"report,omitempty"`
}

// SearchRequest is the POST /api/search body. The Spanish field names are
// accepted for compatibility with existing clients.
type SearchRequest struct {
	Query         string   `json:"query"`
	Tenant        string   `json:"tenant,omitempty"`
	OperationType *string  `json:"operation_type,omitempty"`
	PriceMax      *float64 `json:"price_max,omitempty"`
	TipoOperacion *string  `json:"tipo_operacion,omitempty"`
	PrecioMax     *float64 `json:"precio_max,omitempty"`
	Limit         *int     `json:"limit,omitempty"`
}

func (r *SearchRequest) operationType() string {
	switch {
	case r.OperationType != nil:
		return *r.OperationType
	case r.TipoOperacion != nil:
		return *r.TipoOperacion
	}
	return ""
}

func (r *SearchRequest) priceMax() *float64 {
	if r.PriceMax != nil {
		return r.PriceMax
	}
	return r.PrecioMax
}

// SearchResultItem is one fused hit.
type SearchResultItem struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResponse lists hits in fused order.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Count   int                `json:"count"`
}

// IngestRequest is the body of both ingestion endpoints.
type IngestRequest struct {
	Company     string `json:"company"`
	TokkoAPIKey string `json:"tokko_api_key"`
}

// IngestResponse is returned by a successful synchronous ingestion.
type IngestResponse struct {
	Message string        `json:"message"`
	Report  ingest.Report `json:"report"`
}

// TaskResponse acknowledges an async ingestion.
type TaskResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	CheckURL string `json:"check_url"`
}

// TaskStatusResponse reports an async ingestion.
type TaskStatusResponse struct {
	TaskID string    `json:"task_id"`
	Status string    `json:"status"`
	Error  *string   `json:"error,omitempty"`
	Meta   *TaskMeta `json:"meta,omitempty"`
}

// TaskMeta carries the run details of a task.
type TaskMeta struct {
	Company   string    `json:"company"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Records   int       `json:"records"`
	Upserted  int       `json:"upserted"`
	Failed    int       `json:"failed"`
	Count     uint64    `json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse is the GET /api/health body.
type HealthResponse struct {
	Status     string            `json:"status"`
	Collection string            `json:"collection"`
	Checks     map[string]string `json:"checks"`
	Version    string            `json:"version"`
}

// UsageResponse is the GET /api/usage body. Times are unix milliseconds.
type UsageResponse struct {
	Provider    string `json:"provider"`
	Period      string `json:"period"`
	PeriodStart int64  `json:"period_start"`
	PeriodEnd   int64  `json:"period_end"`
	TokensLimit int64  `json:"tokens_limit"`
	TokensUsed  int64  `json:"tokens_used"`
	Remaining   int64  `json:"tokens_remaining"`
	Exhausted   bool   `json:"is_exhausted"`
}

func usageToDTO(r usage.Report) UsageResponse {
	return UsageResponse{
		Provider:    r.Provider,
		Period:      string(r.Period),
		PeriodStart: r.PeriodStart.UnixMilli(),
		PeriodEnd:   r.PeriodEnd.UnixMilli(),
		TokensLimit: r.Limit,
		TokensUsed:  r.Used,
		Remaining:   r.Remaining,
		Exhausted:   r.Exhausted,
	}
}

func searchResultToDTO(r *result.Result) SearchResultItem {
	return SearchResultItem{
		ID:       r.ID(),
		Score:    r.Score(),
		Content:  r.Content(),
		Metadata: r.Metadata(),
	}
}

func taskToDTO(t task.Task) TaskStatusResponse {
	resp := TaskStatusResponse{
		TaskID: t.ID,
		Status: string(t.Status),
		Meta: &TaskMeta{
			Company:   t.Tenant,
			Stage:     t.Stage,
			Message:   t.Message,
			Kind:      t.Kind,
			Records:   t.Records,
			Upserted:  t.Upserted,
			Failed:    t.Failed,
			Count:     t.Count,
			CreatedAt: t.CreatedAt.UTC(),
			UpdatedAt: t.UpdatedAt.UTC(),
		},
	}
	if t.Error != "" {
		msg := t.Message
		if msg == "" {
			msg = t.Error
		}
		resp.Error = &msg
	}
	return resp
}
