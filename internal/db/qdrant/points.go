package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
)

// Upsert writes points in one request. Points whose dense size disagrees with a
// collection created by this process are rejected before anything is sent.
func (s *Store) Upsert(ctx context.Context, name string, points []point.Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	dims, known := s.knownDims(name)

	structs := make([]*qdrant.PointStruct, len(points))
	for i := range points {
		p := &points[i]
		if known && len(p.Dense) != dims {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf(
				"point %s has %d dimensions, collection expects %d: %w: %w",
				p.ID, len(p.Dense), dims, domain.ErrVectorDimMismatch, domain.ErrStore)}
		}
		ps, err := toPointStruct(p)
		if err != nil {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("%w: %w", err, domain.ErrStore)}
		}
		structs[i] = ps
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(wait),
		Points:         structs,
	})
	if err != nil {
		return wrapErr(db.OpUpsert, err)
	}
	return nil
}

// Query runs the hybrid query. Each leg is a separate Qdrant query on its
// named vector with the shared filter; the legs are fused client-side.
func (s *Store) Query(ctx context.Context, name string, q *db.Query) ([]db.ScoredPoint, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return db.RunHybrid(ctx, q, func(ctx context.Context, leg db.Prefetch) ([]db.ScoredPoint, error) {
		return s.queryLeg(ctx, name, leg)
	})
}

func (s *Store) queryLeg(ctx context.Context, name string, leg db.Prefetch) ([]db.ScoredPoint, error) {
	req := &qdrant.QueryPoints{
		CollectionName: name,
		Using:          qdrant.PtrOf(leg.Using),
		Limit:          qdrant.PtrOf(uint64(leg.Limit)),
		Filter:         toFilter(leg.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if leg.Dense != nil {
		req.Query = qdrant.NewQueryDense(leg.Dense)
	} else {
		req.Query = qdrant.NewQuerySparse(leg.Sparse.Indices, leg.Sparse.Values)
	}

	hits, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, wrapErr(db.OpQuery, err)
	}

	out := make([]db.ScoredPoint, len(hits))
	for i, h := range hits {
		out[i] = db.ScoredPoint{
			ID:      pointIDString(h.GetId()),
			Score:   float64(h.GetScore()),
			Payload: fromPayload(h.GetPayload()),
		}
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context, name string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, wrapErr(db.OpCount, err)
	}
	return n, nil
}
