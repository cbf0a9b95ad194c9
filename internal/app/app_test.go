package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/config"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/usage"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		HTTP:        config.HTTPConfig{Port: 8000},
		VectorStore: config.VectorStoreConfig{Driver: "memory"},
		Embedding:   config.EmbeddingConfig{Provider: "openai", APIKey: "sk-test"},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Store == nil || a.Ingest == nil || a.Search == nil || a.Feed == nil || a.Sparse == nil {
		t.Fatalf("missing components: %+v", a)
	}
	if a.Redis != nil {
		t.Error("redis must stay nil without addrs")
	}
	if a.Dimensions != domain.DefaultVectorConfig().Dimensions {
		t.Errorf("Dimensions = %d", a.Dimensions)
	}

	rep := a.Usage.GetReport(context.Background(), usage.PeriodDay)
	if rep.Provider != "openai" || rep.Limit != 0 || rep.Exhausted {
		t.Errorf("usage without budget = %+v", rep)
	}
}

func TestNew_BudgetReportsLimits(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Embedding.Budget = config.BudgetConfig{DailyTokenLimit: 500, MonthlyTokenLimit: 9000, Action: "reject"}
	cfg.Embedding.RateLimitRPS = 5

	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if rep := a.Usage.GetReport(context.Background(), usage.PeriodDay); rep.Limit != 500 || rep.Remaining != 500 {
		t.Errorf("daily usage = %+v", rep)
	}
	if rep := a.Usage.GetReport(context.Background(), usage.PeriodMonth); rep.Limit != 9000 {
		t.Errorf("monthly usage = %+v", rep)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.VectorStore.Driver = "milvus"

	if _, err := New(context.Background(), cfg, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestNew_BadPolicy(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Ingest.FailurePolicy = "sometimes"

	if _, err := New(context.Background(), cfg, zap.NewNop()); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

type probe struct{ err error }

func (p probe) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, nil
}

func (p probe) HealthCheck(context.Context) error { return p.err }

type noProbe struct{}

func (noProbe) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, nil
}

func TestEmbeddingHealth(t *testing.T) {
	if err := (EmbeddingHealth{Embedder: probe{}}).HealthCheck(context.Background()); err != nil {
		t.Errorf("healthy probe: %v", err)
	}
	down := errors.New("provider down")
	if err := (EmbeddingHealth{Embedder: probe{err: down}}).HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected wrapped probe error, got %v", err)
	}
	if err := (EmbeddingHealth{Embedder: noProbe{}}).HealthCheck(context.Background()); err != nil {
		t.Errorf("embedder without probe: %v", err)
	}
}
