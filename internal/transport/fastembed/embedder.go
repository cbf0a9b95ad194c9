//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

var _ domain.Embedder = (*Embedder)(nil)

var models = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// Embedder wraps a local ONNX model. The model is not safe for concurrent
// inference, so calls are serialized.
type Embedder struct {
	mu    sync.Mutex
	model *fastembed.FlagEmbedding
	dims  int
}

// NewEmbedder loads (and on first use downloads) the model.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	dims, err := Dimensions(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".", "local_cache")
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 512
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                models[cfg.Model],
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("init fastembed %s: %v: %w", cfg.Model, err, domain.ErrConfiguration)
	}
	return &Embedder{model: flag, dims: dims}, nil
}

// Embed implements domain.Embedder. Documents and queries go through the same
// query encoding so both sides of a search share one vector space.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // context error passes through
	}

	e.mu.Lock()
	vec, err := e.model.QueryEmbed(text)
	e.mu.Unlock()
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("fastembed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// HealthCheck always succeeds once the model is loaded.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

// Dimensions returns the model's vector size.
func (e *Embedder) Dimensions() int { return e.dims }

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	if err != nil {
		return fmt.Errorf("destroy fastembed model: %w", err)
	}
	return nil
}
