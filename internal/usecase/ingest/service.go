// Package ingest runs the full-refresh pipeline that rebuilds a tenant's
// listing collection from the property feed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
	"github.com/MatiasPrietoHernan/Retriever/internal/logger"
	"github.com/MatiasPrietoHernan/Retriever/internal/metrics"
	"github.com/MatiasPrietoHernan/Retriever/internal/normalize"
)

// Progress log intervals.
const (
	normalizeLogEvery = 50
	pointLogEvery     = 25
)

// Request names the tenant to rebuild and the feed credential to use.
type Request struct {
	Tenant string
	APIKey string
}

// Validate checks the request before any side effect.
func (r Request) Validate() error {
	if err := domain.ValidateTenant(r.Tenant); err != nil {
		return err //nolint:wrapcheck // already carries ErrInvalidRequest
	}
	if r.APIKey == "" {
		return fmt.Errorf("feed api key is required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// Config tunes a Service.
type Config struct {
	Dense  db.DenseSpec
	Sparse db.SparseSpec
	Policy FailurePolicy
	// DenseConcurrency bounds parallel dense embedding calls. 0 or 1 is sequential.
	DenseConcurrency int
}

// Service rebuilds tenant collections. Runs for one tenant are serialized.
type Service struct {
	feed   Feed
	store  Store
	dense  Embedder
	sparse SparseEmbedder
	lock   *TenantLock
	cfg    Config
	now    func() time.Time
}

// New creates an ingestion service. lock may be nil for an in-process lock only.
func New(feed Feed, store Store, dense Embedder, sparse SparseEmbedder, lock *TenantLock, cfg Config) *Service {
	if lock == nil {
		lock = NewTenantLock(nil, 0, nil)
	}
	if cfg.Policy == "" {
		cfg.Policy = FailFast
	}
	if cfg.DenseConcurrency < 1 {
		cfg.DenseConcurrency = 1
	}
	return &Service{
		feed:   feed,
		store:  store,
		dense:  dense,
		sparse: sparse,
		lock:   lock,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run executes the pipeline and always returns a report. The error is non-nil
// exactly when the run did not reach StageDone; its kind matches Report.Kind.
// A concurrent run for the same tenant fails with ErrIngestionInProgress
// before touching the store.
func (s *Service) Run(ctx context.Context, req Request) (rep Report, err error) {
	start := s.now()
	rep = Report{Tenant: req.Tenant, Status: StatusSuccess, Stage: StageStart}
	ctx, log := logger.With(ctx, zap.String("tenant", req.Tenant))
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func() {
		rep.Tokens = usage.TotalTokens()
		rep.Duration = s.now().Sub(start)
		metrics.IngestRunsTotal.WithLabelValues(string(rep.Stage), string(rep.Status)).Inc()
		metrics.IngestDuration.WithLabelValues(string(rep.Status)).Observe(rep.Duration.Seconds())
	}()

	if err := req.Validate(); err != nil {
		rep.fail(StageStart, MsgInvalidIngestInput, err)
		return rep, err
	}

	release, err := s.lock.Acquire(ctx, req.Tenant)
	if err != nil {
		rep.fail(StageStart, MsgIngestionConflict, err)
		if !errors.Is(err, domain.ErrIngestionInProgress) {
			rep.Message = "failed to acquire ingestion lock"
		}
		return rep, err
	}
	defer release()

	log.Info("Ingestion started", zap.String("policy", string(s.cfg.Policy)))

	if err := s.resetCollection(ctx, req.Tenant, &rep); err != nil {
		return s.abort(log, &rep, err)
	}

	rep.Stage = StageFeedFetch
	records, err := s.feed.Fetch(ctx, req.APIKey)
	if err != nil {
		msg := MsgFeedConnect
		var se httpStatusError
		if errors.As(err, &se) {
			msg = MsgFeedStatus
		}
		rep.fail(StageFeedFetch, msg, err)
		return s.abort(log, &rep, fmt.Errorf("fetch feed: %w", err))
	}
	rep.Records = len(records)
	log.Info("Feed fetched", zap.Int("records", len(records)))

	rep.Stage = StageNormalize
	norm := normalize.New(req.Tenant).WithProgress(normalizeLogEvery, func(done, total int) {
		log.Info("Normalizing records", zap.Int("processed", done), zap.Int("total", total))
	})
	docs, failures := norm.NormalizeBatch(records)
	if len(failures) > 0 && s.cfg.Policy == FailFast {
		f := failures[0]
		rep.fail(StageNormalize, MsgNormalize, f.Err)
		return s.abort(log, &rep, fmt.Errorf("record %d: %w", f.Index, f.Err))
	}
	for _, f := range failures {
		rep.Failed = append(rep.Failed, failedRecord(f.Index, f.Err))
		log.Warn("Skipping malformed record", zap.Int("index", f.Index), zap.Error(f.Err))
	}
	rep.Documents = len(docs)

	rep.Stage = StageEmbed
	sparse, dense, err := s.embed(ctx, docs, &rep)
	if err != nil {
		return s.abort(log, &rep, err)
	}

	rep.Stage = StagePointBuild
	points := make([]point.Point, 0, len(docs))
	for i, doc := range docs {
		p, perr := point.FromDocument(doc, dense[i], sparse[i])
		if perr != nil {
			rep.fail(StagePointBuild, MsgPointBuild, perr)
			return s.abort(log, &rep, perr)
		}
		points = append(points, p)
		if (i+1)%pointLogEvery == 0 {
			log.Info("Preparing points", zap.Int("prepared", i+1), zap.Int("total", len(docs)))
		}
	}

	rep.Stage = StageUpsert
	if len(points) > 0 {
		if err := s.store.Upsert(ctx, req.Tenant, points, true); err != nil {
			rep.fail(StageUpsert, MsgUpsert, err)
			return s.abort(log, &rep, fmt.Errorf("upsert %s: %w", req.Tenant, err))
		}
		rep.Upserted = len(points)
		metrics.IngestPointsTotal.Add(float64(len(points)))
	}

	if n, cerr := s.store.Count(ctx, req.Tenant); cerr != nil {
		log.Warn("Post-ingestion count failed", zap.Error(cerr))
	} else {
		rep.Count = n
	}

	rep.Stage = StageDone
	rep.Message = MsgCompleted
	log.Info("Ingestion completed",
		zap.Int("records", rep.Records),
		zap.Int("upserted", rep.Upserted),
		zap.Int("skipped", len(rep.Failed)),
		zap.Uint64("count", rep.Count),
	)
	return rep, nil
}

func (s *Service) resetCollection(ctx context.Context, name string, rep *Report) error {
	rep.Stage = StageCollectionReset
	if err := s.store.DeleteCollection(ctx, name); err != nil {
		rep.fail(StageCollectionReset, MsgCollectionReset, err)
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	if err := s.store.CreateCollection(ctx, name, s.cfg.Dense, s.cfg.Sparse); err != nil {
		rep.fail(StageCollectionReset, MsgCollectionCreate, err)
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// embed runs one sparse batch over all documents, then one dense call per
// document. Output slices are index-aligned with docs.
func (s *Service) embed(ctx context.Context, docs []listing.Document, rep *Report) ([]domain.SparseVector, [][]float32, error) {
	if len(docs) == 0 {
		return nil, nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content()
	}

	sparse, err := s.sparse.EmbedSparse(ctx, texts)
	if err == nil && len(sparse) != len(texts) {
		err = fmt.Errorf("sparse embedder returned %d vectors for %d texts: %w",
			len(sparse), len(texts), domain.ErrEmbeddingProviderError)
	}
	if err != nil {
		rep.fail(StageEmbed, MsgSparseEmbeddings, err)
		return nil, nil, fmt.Errorf("sparse embeddings: %w", err)
	}

	dense := make([][]float32, len(texts))
	usage := domain.UsageFromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DenseConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			res, err := s.dense.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("listing %s: %w", docs[i].ID(), err)
			}
			usage.AddTokens(res.TotalTokens)
			dense[i] = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rep.fail(StageEmbed, MsgDenseEmbeddings, err)
		return nil, nil, fmt.Errorf("dense embeddings: %w", err)
	}
	return sparse, dense, nil
}

func (s *Service) abort(log *zap.Logger, rep *Report, err error) (Report, error) {
	log.Error("Ingestion failed",
		zap.String("stage", string(rep.Stage)),
		zap.String("kind", string(rep.Kind)),
		zap.String("message", rep.Message),
		zap.Error(err),
	)
	return *rep, err
}

func failedRecord(index int, err error) FailedRecord {
	fr := FailedRecord{Index: index, Reason: err.Error()}
	var nerr *domain.NormalizationError
	if errors.As(err, &nerr) {
		fr.ID = nerr.RecordID
		if nerr.Err != nil {
			fr.Reason = nerr.Err.Error()
		}
	}
	return fr
}
