package search

import (
	"context"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// Store runs fused queries against a tenant collection.
type Store interface {
	Query(ctx context.Context, name string, q *db.Query) ([]db.ScoredPoint, error)
}

// Embedder vectorizes the query text into the dense space.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SparseEmbedder vectorizes the query text into the lexical space.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([]domain.SparseVector, error)
}
