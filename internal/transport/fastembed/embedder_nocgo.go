//go:build !cgo

package fastembed

import (
	"context"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// Embedder is unavailable without cgo.
type Embedder struct{}

// NewEmbedder always fails without cgo.
func NewEmbedder(Config) (*Embedder, error) {
	return nil, ErrNotAvailable
}

// Embed always fails without cgo.
func (e *Embedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, ErrNotAvailable
}

// HealthCheck always fails without cgo.
func (e *Embedder) HealthCheck(context.Context) error { return ErrNotAvailable }

// Dimensions returns 0 without cgo.
func (e *Embedder) Dimensions() int { return 0 }

// Close is a no-op without cgo.
func (e *Embedder) Close() error { return nil }
