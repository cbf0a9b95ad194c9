// Package search answers listing queries by fusing dense and sparse retrieval.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/request"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/result"
	"github.com/MatiasPrietoHernan/Retriever/internal/logger"
	"github.com/MatiasPrietoHernan/Retriever/internal/metrics"
)

// OverFetchFactor multiplies the requested limit for each prefetch leg so
// fusion has candidates beyond the final cut.
const OverFetchFactor = 2

// Service runs hybrid listing searches. It never writes to the store.
type Service struct {
	store  Store
	dense  Embedder
	sparse SparseEmbedder
}

// New creates a search service.
func New(store Store, dense Embedder, sparse SparseEmbedder) *Service {
	return &Service{store: store, dense: dense, sparse: sparse}
}

// Search embeds the query both ways, runs one prefetch leg per vector space
// with the request's filter, and returns at most Limit fused results.
// A missing tenant collection is domain.ErrNotFound, never an empty list.
func (s *Service) Search(ctx context.Context, req *request.Request) (results []result.Result, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = string(domain.KindOf(err))
		}
		metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	dense, sparse, err := s.embed(ctx, req.Query())
	if err != nil {
		return nil, err
	}

	legLimit := req.Limit() * OverFetchFactor
	q := &db.Query{
		Prefetch: []db.Prefetch{
			{Using: point.DenseVectorName, Dense: dense, Limit: legLimit, Filter: req.Filters()},
			{Using: point.SparseVectorName, Sparse: &sparse, Limit: legLimit, Filter: req.Filters()},
		},
		Fusion: db.FusionRRF,
		Limit:  req.Limit(),
	}

	hits, err := s.store.Query(ctx, req.Tenant(), q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Tenant(), err)
	}

	results = make([]result.Result, 0, min(len(hits), req.Limit()))
	for _, h := range hits {
		if len(results) == req.Limit() {
			break
		}
		content, _ := h.Payload[point.PayloadContent].(string)
		meta, _ := h.Payload[point.PayloadMetadata].(map[string]any)
		results = append(results, result.New(h.ID, h.Score, content, meta))
	}

	logger.FromContext(ctx).Debug("search completed",
		zap.String("tenant", req.Tenant()),
		zap.Int("results", len(results)),
		zap.Int("limit", req.Limit()),
		zap.Bool("filtered", !req.Filters().IsEmpty()),
	)
	return results, nil
}

// embed computes the dense and sparse query vectors concurrently.
func (s *Service) embed(ctx context.Context, query string) ([]float32, domain.SparseVector, error) {
	var (
		dense  []float32
		sparse domain.SparseVector
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.dense.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("vectorize query: %w", err)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
		dense = res.Embedding
		return nil
	})
	g.Go(func() error {
		vecs, err := s.sparse.EmbedSparse(gctx, []string{query})
		if err != nil {
			return fmt.Errorf("sparse vectorize query: %w", err)
		}
		if len(vecs) != 1 {
			return fmt.Errorf("sparse embedder returned %d vectors for 1 query: %w",
				len(vecs), domain.ErrEmbeddingProviderError)
		}
		sparse = vecs[0]
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.SparseVector{}, err //nolint:wrapcheck // wrapped in the goroutines
	}
	return dense, sparse, nil
}
