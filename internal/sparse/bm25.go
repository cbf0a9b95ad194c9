// Package sparse builds BM25-weighted sparse vectors for lexical retrieval.
package sparse

import (
	"context"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

var _ domain.SparseEmbedder = (*Encoder)(nil)

// Defaults of the BM25 term-frequency saturation.
const (
	DefaultK1     = 1.2
	DefaultB      = 0.75
	DefaultAvgLen = 256
)

// Config tunes the encoder.
type Config struct {
	K1 float64
	B  float64
	// AvgLen is the assumed average document length in tokens.
	AvgLen float64
	// Language selects the stopword list: "spanish" or "none".
	Language    string
	FoldAccents bool
	MinTokenLen int
}

// Encoder turns texts into sparse vectors. Token indices are 32-bit xxhash
// values, so vectors from different runs stay comparable without a vocabulary.
// Document weights saturate term frequency the BM25 way; the inverse document
// frequency half is left to the store.
type Encoder struct {
	tok    tokenizer
	k1     float64
	b      float64
	avgLen float64
	query  bool
}

// New creates a document encoder.
func New(cfg Config) *Encoder {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	if cfg.AvgLen <= 0 {
		cfg.AvgLen = DefaultAvgLen
	}
	if cfg.MinTokenLen <= 0 {
		cfg.MinTokenLen = 1
	}
	var stop map[string]struct{}
	if cfg.Language != "none" {
		stop = spanishStopwords
	}
	return &Encoder{
		tok:    tokenizer{foldAccents: cfg.FoldAccents, stopwords: stop, minLength: cfg.MinTokenLen},
		k1:     cfg.K1,
		b:      cfg.B,
		avgLen: cfg.AvgLen,
	}
}

// ForQueries returns an encoder sharing the tokenizer that weighs every
// distinct query token 1.
func (e *Encoder) ForQueries() *Encoder {
	q := *e
	q.query = true
	return &q
}

// EmbedSparse encodes each text. The result is aligned with texts.
func (e *Encoder) EmbedSparse(ctx context.Context, texts []string) ([]domain.SparseVector, error) {
	out := make([]domain.SparseVector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // context error passes through
		}
		out[i] = e.encode(text)
	}
	return out, nil
}

func (e *Encoder) encode(text string) domain.SparseVector {
	tokens := e.tok.tokens(text)
	tf := make(map[uint32]float64, len(tokens))
	for _, t := range tokens {
		tf[tokenIndex(t)]++
	}

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	docLen := float64(len(tokens))
	for i, idx := range indices {
		if e.query {
			values[i] = 1
			continue
		}
		f := tf[idx]
		norm := e.k1 * (1 - e.b + e.b*docLen/e.avgLen)
		values[i] = float32(f * (e.k1 + 1) / (f + norm))
	}
	return domain.SparseVector{Indices: indices, Values: values}
}

func tokenIndex(token string) uint32 {
	return uint32(xxhash.Sum64String(token))
}
