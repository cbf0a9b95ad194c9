// Package embcache keeps dense embeddings in Redis so re-ingesting an
// unchanged feed does not pay for the same vectors twice.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "emb_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config describes what the cached vectors belong to.
type Config struct {
	// Model scopes keys so a model switch never serves stale vectors.
	Model string
	// Dims rejects cached entries of the wrong size. 0 disables the check.
	Dims int
	TTL  time.Duration
	// CacheTotal counts lookups by label "result" (hit, miss).
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// Embedder serves listing embeddings from Redis and falls through to the
// wrapped provider on a miss. Cache failures only cost a provider call.
type Embedder struct {
	next  domain.Embedder
	store store
	cfg   Config
	log   *zap.Logger
}

// New wraps next with a read-through cache.
func New(next domain.Embedder, s store, cfg Config) *Embedder {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Embedder{next: next, store: s, cfg: cfg, log: log.Named("embcache")}
}

// Embed implements domain.Embedder. Hits report zero tokens.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)

	if vec := e.lookup(ctx, key); vec != nil {
		e.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	e.count("miss")

	res, err := e.next.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	if err := e.store.SetWithTTL(ctx, key, encodeVector(res.Embedding), e.cfg.TTL); err != nil {
		e.log.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

// HealthCheck probes the wrapped provider.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.next.(domain.HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator passes through
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.cfg.Model + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// lookup returns nil on any miss, including unreadable or mis-sized entries.
func (e *Embedder) lookup(ctx context.Context, key string) []float32 {
	data, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil
	case err != nil:
		e.log.Warn("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
		return nil
	}

	vec, err := decodeVector(data)
	if err != nil {
		e.log.Warn("Dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	if e.cfg.Dims > 0 && len(vec) != e.cfg.Dims {
		e.log.Warn("Cached embedding has wrong size",
			zap.String("key", key), zap.Int("dims", len(vec)), zap.Int("want", e.cfg.Dims))
		return nil
	}
	return vec
}

func (e *Embedder) count(result string) {
	if e.cfg.CacheTotal != nil {
		e.cfg.CacheTotal.WithLabelValues(result).Inc()
	}
}
