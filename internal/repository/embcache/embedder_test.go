package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner, "m1", 3)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "casa en palermo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 {
		t.Fatalf("miss should report inner tokens, got %d", first.TotalTokens)
	}
	if ms.lastTTL != time.Hour {
		t.Errorf("expected TTL 1h, got %v", ms.lastTTL)
	}

	second, err := ce.Embed(ctx, "casa en palermo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit should report 0 tokens, got %d", second.TotalTokens)
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestEmbed_KeysScopedByModel(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	a, _ := newTestCachedEmbedder(t, inner, "model-a", 0)
	b := New(inner, a.store, Config{Model: "model-b"})

	if a.key("x") == b.key("x") {
		t.Fatal("different models must not share cache keys")
	}
	if a.key("x") == a.key("y") {
		t.Fatal("different texts must not share cache keys")
	}
}

func TestEmbed_WrongSizeEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	ce, ms := newTestCachedEmbedder(t, inner, "m", 3)
	ms.data[ce.key("x")] = encodeVector([]float32{9, 9})

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || len(res.Embedding) != 3 {
		t.Errorf("expected inner call with 3 dims, calls=%d dims=%d", inner.calls, len(res.Embedding))
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner, "m", 0)
	ms.data[ce.key("x")] = []byte{1, 2, 3}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner call, got %d", inner.calls)
	}
}

func TestEmbed_StoreFailuresAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner, "m", 0)
	ms.getErr = errors.New("connection refused")
	ms.setErr = errors.New("connection refused")

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("cache errors must not fail the call: %v", err)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	ce, ms := newTestCachedEmbedder(t, inner, "m", 0)

	_, err := ce.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestDecodeVector_RejectsBadEntries(t *testing.T) {
	good := encodeVector([]float32{-1.5, 0, 3.25})
	truncated := good[:len(good)-2]
	wrongVersion := append([]byte{9}, good[1:]...)

	for name, data := range map[string][]byte{
		"empty":         nil,
		"truncated":     truncated,
		"wrong version": wrongVersion,
	} {
		if _, err := decodeVector(data); !errors.Is(err, errBadEntry) {
			t.Errorf("%s: expected errBadEntry, got %v", name, err)
		}
	}
	if vec, err := decodeVector(good); err != nil || len(vec) != 3 || vec[0] != -1.5 {
		t.Errorf("decode good entry = %v, %v", vec, err)
	}
}
