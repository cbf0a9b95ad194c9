// Package app assembles the retriever components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/config"
	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/db/memory"
	"github.com/MatiasPrietoHernan/Retriever/internal/db/qdrant"
	dbRedis "github.com/MatiasPrietoHernan/Retriever/internal/db/redis"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/metrics"
	budgetrepo "github.com/MatiasPrietoHernan/Retriever/internal/repository/budget"
	"github.com/MatiasPrietoHernan/Retriever/internal/repository/embcache"
	"github.com/MatiasPrietoHernan/Retriever/internal/sparse"
	"github.com/MatiasPrietoHernan/Retriever/internal/transport/fastembed"
	"github.com/MatiasPrietoHernan/Retriever/internal/transport/feed"
	openaiEmb "github.com/MatiasPrietoHernan/Retriever/internal/transport/openai"
	embeddinguc "github.com/MatiasPrietoHernan/Retriever/internal/usecase/embedding"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/ingest"
	searchuc "github.com/MatiasPrietoHernan/Retriever/internal/usecase/search"
	usageuc "github.com/MatiasPrietoHernan/Retriever/internal/usecase/usage"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Store      db.VectorStore
	Redis      *dbRedis.Store // nil when redis is not configured
	Embedder   domain.Embedder
	Sparse     *sparse.Encoder
	Feed       *feed.Client
	Ingest     *ingest.Service
	Search     *searchuc.Service
	Usage      *usageuc.Service
	Dimensions int

	closers []func()
}

// New connects to the backing stores and builds the pipelines.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := newVectorStore(cfg.VectorStore, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	if err := store.WaitForReady(ctx, time.Duration(cfg.VectorStore.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("vector store not ready: %w", err)
	}
	logger.Info("Connected to vector store",
		zap.String("driver", cfg.VectorStore.Driver),
		zap.String("host", cfg.VectorStore.Host),
	)

	if cfg.Redis.Enabled() {
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.Redis = rs
		a.closers = append(a.closers, rs.Close)
		if err := rs.WaitForReady(ctx, time.Duration(cfg.VectorStore.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	embedder, budget, dims, closeEmb, err := a.buildEmbedder(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	if closeEmb != nil {
		a.closers = append(a.closers, closeEmb)
	}
	a.Embedder, a.Dimensions = embedder, dims

	// Pass nil interface (not typed nil pointer) when budget is not configured.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	a.Usage = usageuc.New(cfg.Embedding.Provider, budgetReader)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", dims),
	)

	a.Sparse = sparse.New(sparse.Config{
		K1:          cfg.Sparse.K1,
		B:           cfg.Sparse.B,
		AvgLen:      cfg.Sparse.AvgLen,
		Language:    cfg.Sparse.Language,
		FoldAccents: cfg.Sparse.FoldAccents,
		MinTokenLen: cfg.Sparse.MinTokenLen,
	})

	a.Feed, err = NewFeedClient(cfg.Feed, logger)
	if err != nil {
		return nil, err
	}

	policy, err := ingest.ParsePolicy(cfg.Ingest.FailurePolicy)
	if err != nil {
		return nil, err
	}

	// Pass a nil interface, not a typed nil pointer, when redis is off.
	var lease ingest.Lease
	if a.Redis != nil {
		lease = a.Redis
	}
	lock := ingest.NewTenantLock(lease, time.Duration(cfg.Ingest.LockTTLSec)*time.Second, logger)

	a.Ingest = ingest.New(a.Feed, store, embedder, a.Sparse, lock, ingest.Config{
		Dense:            db.DenseSpec{Size: dims, Distance: db.Distance(cfg.VectorStore.Distance)},
		Sparse:           db.SparseSpec{IDF: cfg.VectorStore.SparseIDF},
		Policy:           policy,
		DenseConcurrency: cfg.Embedding.Concurrency,
	})
	a.Search = searchuc.New(store, embedder, a.Sparse.ForQueries())

	ok = true
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewFeedClient builds the listing feed client alone, for commands that
// never touch the stores.
func NewFeedClient(cfg config.FeedConfig, logger *zap.Logger) (*feed.Client, error) {
	c, err := feed.NewClient(feed.Config{
		BaseURL:      cfg.BaseURL,
		PageSize:     cfg.PageSize,
		Lang:         cfg.Lang,
		Timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		MaxRetries:   uint64(cfg.MaxRetries),
		RetryBackoff: time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create feed client: %w", err)
	}
	return c, nil
}

func newVectorStore(cfg config.VectorStoreConfig, logger *zap.Logger) (db.VectorStore, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("Using the in-memory vector store; data is lost on restart")
		return memory.NewStore(), nil
	case "qdrant":
		s, err := qdrant.NewStore(qdrant.Config{
			Host:           cfg.Host,
			Port:           cfg.Port,
			APIKey:         cfg.APIKey,
			UseTLS:         cfg.TLS,
			PayloadIndexes: cfg.PayloadIndexes,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create qdrant store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector store driver %q: %w", cfg.Driver, domain.ErrConfiguration)
	}
}

// buildEmbedder assembles the decorator chain:
// provider -> rate limit -> redis cache -> instrumented (budget + metrics).
func (a *App) buildEmbedder(
	ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger,
) (domain.Embedder, *embeddinguc.BudgetTracker, int, func(), error) {
	var (
		base    domain.Embedder
		dims    int
		closeFn func()
	)
	switch cfg.Provider {
	case "fastembed":
		fe, err := fastembed.NewEmbedder(fastembed.Config{
			Model:     cfg.Model,
			CacheDir:  cfg.FastEmbed.CacheDir,
			MaxLength: cfg.FastEmbed.MaxLength,
		})
		if err != nil {
			if errors.Is(err, fastembed.ErrNotAvailable) {
				return nil, nil, 0, nil, fmt.Errorf("fastembed provider: %w: %w", err, domain.ErrConfiguration)
			}
			return nil, nil, 0, nil, fmt.Errorf("load fastembed model: %w", err)
		}
		base, dims = fe, fe.Dimensions()
		closeFn = func() { _ = fe.Close() }
	default:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			User:       cfg.User,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
		dims = cfg.Dimensions
	}

	embedder := base
	if cfg.RateLimitRPS > 0 {
		embedder = embeddinguc.NewRateLimitedEmbedder(embedder, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	if a.Redis != nil && cfg.Cache.Enabled {
		embedder = embcache.New(embedder, a.Redis, embcache.Config{
			Model:      cfg.Provider + ":" + cfg.Model,
			Dims:       dims,
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}

	// Pass nil interface (not typed nil pointer) if budget is not configured.
	var (
		budget  embeddinguc.BudgetChecker
		tracker *embeddinguc.BudgetTracker
	)
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if cfg.Budget.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		tracker = embeddinguc.NewBudgetTracker(
			cfg.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		)
		if a.Redis != nil {
			tracker.WithStore(ctx, budgetrepo.New(a.Redis, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		}
		budget = tracker
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, budget, logger)
	return embedder, tracker, dims, closeFn, nil
}

// EmbeddingHealth adapts the embedder chain to a health check.
// Embedders without a health probe are treated as healthy.
type EmbeddingHealth struct {
	Embedder domain.Embedder
}

// HealthCheck probes the provider.
func (h EmbeddingHealth) HealthCheck(ctx context.Context) error {
	if hc, ok := h.Embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
