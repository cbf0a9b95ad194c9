package db

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/fusion"
)

// Fusion selects how prefetch legs are merged.
type Fusion string

// FusionRRF is Reciprocal Rank Fusion.
const FusionRRF Fusion = "rrf"

// Prefetch is one retrieval leg of a hybrid query. Exactly one of Dense or Sparse is set.
type Prefetch struct {
	Using  string
	Dense  []float32
	Sparse *domain.SparseVector
	Limit  int
	Filter filter.Expression
}

// Query is a hybrid query: independent legs fused into one ranking.
type Query struct {
	Prefetch []Prefetch
	Fusion   Fusion
	Limit    int
}

// Validate checks the query shape.
func (q *Query) Validate() error {
	if len(q.Prefetch) == 0 {
		return fmt.Errorf("query needs at least one prefetch leg: %w", domain.ErrInvalidRequest)
	}
	if q.Fusion != FusionRRF {
		return fmt.Errorf("unsupported fusion %q: %w", q.Fusion, domain.ErrInvalidRequest)
	}
	for i, p := range q.Prefetch {
		if (p.Dense == nil) == (p.Sparse == nil) {
			return fmt.Errorf("prefetch %d must set exactly one vector: %w", i, domain.ErrInvalidRequest)
		}
		if p.Limit <= 0 {
			return fmt.Errorf("prefetch %d needs a positive limit: %w", i, domain.ErrInvalidRequest)
		}
	}
	return nil
}

// ScoredPoint is a query hit with its payload.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// LegRunner executes a single prefetch leg.
type LegRunner func(ctx context.Context, leg Prefetch) ([]ScoredPoint, error)

// RunHybrid runs every leg concurrently and fuses the rankings. Only the
// within-leg order of each result matters to fusion.
func RunHybrid(ctx context.Context, q *Query, run LegRunner) ([]ScoredPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	legs := make([][]ScoredPoint, len(q.Prefetch))
	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range q.Prefetch {
		g.Go(func() error {
			hits, err := run(gctx, leg)
			if err != nil {
				return fmt.Errorf("prefetch %s: %w", leg.Using, err)
			}
			legs[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // legs already wrapped
	}

	fused := fusion.RRF(q.Limit, func(p ScoredPoint) string { return p.ID }, legs...)
	out := make([]ScoredPoint, len(fused))
	for i, f := range fused {
		out[i] = ScoredPoint{ID: f.Item.ID, Score: f.Score, Payload: f.Item.Payload}
	}
	return out, nil
}
