package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
)

// Feed downloads the raw property records of one account.
type Feed interface {
	Fetch(ctx context.Context, apiKey string) ([]json.RawMessage, error)
}

// Store is the subset of the vector store ingestion writes through.
type Store interface {
	CreateCollection(ctx context.Context, name string, dense db.DenseSpec, sparse db.SparseSpec) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, points []point.Point, wait bool) error
	Count(ctx context.Context, name string) (uint64, error)
}

// Embedder produces one dense vector per call.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SparseEmbedder produces lexical vectors for a batch of texts.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([]domain.SparseVector, error)
}

// Lease is a cross-process lock. Optional.
type Lease interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// TaskRepository persists async task records.
type TaskRepository interface {
	Save(ctx context.Context, t task.Task) error
	Get(ctx context.Context, id string) (task.Task, error)
}

// httpStatusError is implemented by feed errors that carry a response status.
type httpStatusError interface {
	HTTPStatus() int
}
