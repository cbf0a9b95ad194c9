// Package request holds the validated form of a listing search.
package request

import (
	"fmt"
	"strings"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
)

// Request is a validated search query against one tenant's collection.
type Request struct {
	tenant  string
	query   string
	filters filter.Expression
	limit   int
}

// New validates and normalizes search parameters. A non-positive limit falls
// back to DefaultLimit; limits above maxLimit are clamped.
func New(tenant, query string, filters filter.Expression, limit, maxLimit int) (Request, error) {
	if err := domain.ValidateTenant(tenant); err != nil {
		return Request{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidRequest)
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Request{tenant: tenant, query: query, filters: filters, limit: limit}, nil
}

// Tenant returns the collection being searched.
func (r *Request) Tenant() string { return r.tenant }

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Filters returns the predicate applied to both retrieval legs.
func (r *Request) Filters() filter.Expression { return r.filters }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }
