// Package db declares the storage contracts and their shared plumbing.
package db

import (
	"context"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
)

// VectorStore is the vector store facade. Consumers depend on the narrow sub-interfaces.
type VectorStore interface {
	Pinger
	CollectionManager
	PointWriter
	Searcher
	Close() error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DenseSpec configures the dense vector field of a collection.
type DenseSpec struct {
	Size     int
	Distance Distance
}

// SparseSpec configures the sparse vector field of a collection.
type SparseSpec struct {
	// IDF lets the store apply inverse document frequency on top of stored weights.
	IDF bool
}

// Distance is a dense similarity metric.
type Distance string

// Supported distances.
const (
	DistanceCosine Distance = "cosine"
	DistanceDot    Distance = "dot"
	DistanceEuclid Distance = "euclid"
)

// CollectionManager handles collection lifecycle.
type CollectionManager interface {
	CreateCollection(ctx context.Context, name string, dense DenseSpec, sparse SparseSpec) error
	// DeleteCollection is a no-op when the collection does not exist.
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
}

// PointWriter writes points.
type PointWriter interface {
	// Upsert overwrites points by id. With wait it returns only after the store applied the batch.
	Upsert(ctx context.Context, name string, points []point.Point, wait bool) error
}

// Searcher runs queries.
type Searcher interface {
	Query(ctx context.Context, name string, q *Query) ([]ScoredPoint, error)
	Count(ctx context.Context, name string) (uint64, error)
}

// KVStore provides the key-value operations of caches, task records and budget counters.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrByWithTTL increments a counter; ttl applies only when the key has no expiry yet.
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) error
}

// Locker provides leased mutual exclusion keyed by name.
type Locker interface {
	// TryLock acquires key for token until ttl elapses. Returns false when held by someone else.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Unlock releases key only if it is still held by token.
	Unlock(ctx context.Context, key, token string) error
}
