// Package memory is an in-process vector store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

type collection struct {
	dense  db.DenseSpec
	sparse db.SparseSpec
	points map[string]point.Point
}

// Store keeps collections in memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// CreateCollection creates an empty collection, replacing nothing.
func (s *Store) CreateCollection(_ context.Context, name string, dense db.DenseSpec, sparse db.SparseSpec) error {
	if dense.Size <= 0 {
		return fmt.Errorf("dense size must be positive: %w", domain.ErrConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return &db.Error{Op: db.OpCreateCollection, Err: fmt.Errorf("collection %q already exists: %w", name, domain.ErrStore)}
	}
	s.collections[name] = &collection{dense: dense, sparse: sparse, points: make(map[string]point.Point)}
	return nil
}

// DeleteCollection drops a collection; missing collections are ignored.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.collections, name)
	s.mu.Unlock()
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.collections[name]
	s.mu.RUnlock()
	return ok, nil
}

// Upsert validates the whole batch, then overwrites points by id.
func (s *Store) Upsert(_ context.Context, name string, points []point.Point, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)}
	}
	for i := range points {
		if len(points[i].Dense) != c.dense.Size {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf(
				"point %s has %d dimensions, collection expects %d: %w: %w",
				points[i].ID, len(points[i].Dense), c.dense.Size, domain.ErrVectorDimMismatch, domain.ErrStore)}
		}
		if err := points[i].Sparse.Validate(); err != nil {
			return &db.Error{Op: db.OpUpsert, Err: fmt.Errorf("point %s: %w: %w", points[i].ID, err, domain.ErrStore)}
		}
	}
	for _, p := range points {
		c.points[p.ID.String()] = p
	}
	return nil
}

// Count returns the number of points.
func (s *Store) Count(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, &db.Error{Op: db.OpCount, Err: fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)}
	}
	return uint64(len(c.points)), nil
}

// Query runs each leg as an exhaustive scan and fuses the rankings.
func (s *Store) Query(ctx context.Context, name string, q *db.Query) ([]db.ScoredPoint, error) {
	s.mu.RLock()
	c, ok := s.collections[name]
	var snapshot []point.Point
	if ok {
		snapshot = make([]point.Point, 0, len(c.points))
		for _, p := range c.points {
			snapshot = append(snapshot, p)
		}
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}

	return db.RunHybrid(ctx, q, func(_ context.Context, leg db.Prefetch) ([]db.ScoredPoint, error) {
		return c.scan(snapshot, leg)
	})
}

func (c *collection) scan(points []point.Point, leg db.Prefetch) ([]db.ScoredPoint, error) {
	var idf map[uint32]float64
	if leg.Sparse != nil && c.sparse.IDF {
		idf = inverseDocumentFrequency(points, leg.Sparse.Indices)
	}

	hits := make([]db.ScoredPoint, 0, len(points))
	for _, p := range points {
		if !leg.Filter.Evaluate(payloadLookup(p.Payload)) {
			continue
		}
		var score float64
		switch {
		case leg.Dense != nil:
			if len(leg.Dense) != c.dense.Size {
				return nil, fmt.Errorf("query has %d dimensions, collection expects %d: %w",
					len(leg.Dense), c.dense.Size, domain.ErrVectorDimMismatch)
			}
			score = denseScore(c.dense.Distance, leg.Dense, p.Dense)
		default:
			var overlap bool
			score, overlap = sparseScore(*leg.Sparse, p.Sparse, idf)
			if !overlap {
				continue
			}
		}
		hits = append(hits, db.ScoredPoint{ID: p.ID.String(), Score: score, Payload: p.Payload})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > leg.Limit {
		hits = hits[:leg.Limit]
	}
	return hits, nil
}

func denseScore(d db.Distance, a, b []float32) float64 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}
	switch d {
	case db.DistanceDot:
		return dot
	case db.DistanceEuclid:
		return -math.Sqrt(sq)
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}

// sparseScore is the dot product over shared indices. overlap is false when
// no index is shared, such points are not candidates of a sparse leg.
func sparseScore(q, doc domain.SparseVector, idf map[uint32]float64) (float64, bool) {
	weights := make(map[uint32]float32, len(doc.Indices))
	for i, idx := range doc.Indices {
		weights[idx] = doc.Values[i]
	}
	var score float64
	overlap := false
	for i, idx := range q.Indices {
		w, ok := weights[idx]
		if !ok {
			continue
		}
		overlap = true
		term := float64(q.Values[i]) * float64(w)
		if idf != nil {
			term *= idf[idx]
		}
		score += term
	}
	return score, overlap
}

// inverseDocumentFrequency uses the BM25 idf: ln(1 + (N - n + 0.5) / (n + 0.5)).
func inverseDocumentFrequency(points []point.Point, indices []uint32) map[uint32]float64 {
	df := make(map[uint32]int, len(indices))
	for _, idx := range indices {
		df[idx] = 0
	}
	for _, p := range points {
		for _, idx := range p.Sparse.Indices {
			if _, ok := df[idx]; ok {
				df[idx]++
			}
		}
	}
	n := float64(len(points))
	out := make(map[uint32]float64, len(df))
	for idx, count := range df {
		c := float64(count)
		out[idx] = math.Log(1 + (n-c+0.5)/(c+0.5))
	}
	return out
}

// payloadLookup resolves dotted paths such as "metadata.price" into nested maps.
func payloadLookup(payload map[string]any) func(string) (any, bool) {
	return func(path string) (any, bool) {
		var cur any = payload
		for _, part := range strings.Split(path, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[part]
			if !ok {
				return nil, false
			}
		}
		return cur, true
	}
}
