// Package result holds fused search hits.
package result

// Result is a single search hit.
type Result struct {
	id       string
	score    float64
	content  string
	metadata map[string]any
}

// New creates a search result.
func New(id string, score float64, content string, metadata map[string]any) Result {
	return Result{id: id, score: score, content: content, metadata: metadata}
}

// ID returns the point identifier.
func (r *Result) ID() string { return r.id }

// Score returns the fused relevance score.
func (r *Result) Score() float64 { return r.score }

// Content returns the listing text.
func (r *Result) Content() string { return r.content }

// Metadata returns the listing metadata as stored.
func (r *Result) Metadata() map[string]any { return r.metadata }
