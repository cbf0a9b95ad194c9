package embedding

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result    domain.EmbeddingResult
	err       error
	calls     int
	healthErr error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) HealthCheck(context.Context) error { return m.healthErr }

type mockBudget struct {
	checkErr error
	recorded int64
}

func (m *mockBudget) Check(context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)         { m.recorded += tokens }
func (m *mockBudget) RemainingDaily() int64       { return 900 }
func (m *mockBudget) RemainingMonthly() int64     { return -1 }

func TestInstrumentedEmbedder_RecordsUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 7}}
	budget := &mockBudget{}
	p := NewInstrumentedEmbedder(inner, "openai", "m", budget, nil)

	res, err := p.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
	if budget.recorded != 7 {
		t.Errorf("budget recorded %d, want 7", budget.recorded)
	}
	if v := testutil.ToFloat64(metrics.EmbeddingBudgetTokensRemaining.WithLabelValues("openai", "daily")); v != 900 {
		t.Errorf("remaining gauge = %v, want 900", v)
	}
}

func TestInstrumentedEmbedder_ZeroTokensSkipBudget(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	budget := &mockBudget{}
	p := NewInstrumentedEmbedder(inner, "openai", "m", budget, nil)

	if _, err := p.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if budget.recorded != 0 {
		t.Errorf("zero-token call must not touch the budget, recorded %d", budget.recorded)
	}
}

func TestInstrumentedEmbedder_BudgetRejection(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "openai", "m", &mockBudget{checkErr: domain.ErrEmbeddingQuotaExceeded}, nil)

	_, err := p.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if inner.calls != 0 {
		t.Error("inner must not be called when the budget rejects")
	}
}

func TestInstrumentedEmbedder_InnerError(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{err: domain.ErrEmbeddingProviderError}, "openai", "m", nil, nil)
	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestInstrumentedEmbedder_HealthCheckDelegates(t *testing.T) {
	want := errors.New("down")
	p := NewInstrumentedEmbedder(&mockEmbedder{healthErr: want}, "openai", "m", nil, nil)
	if err := p.HealthCheck(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected delegated error, got %v", err)
	}
}
