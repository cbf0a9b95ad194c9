package ingest

import (
	"fmt"
	"strings"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// FailurePolicy decides what a malformed feed record does to the run.
type FailurePolicy string

// Failure policies.
const (
	// FailFast aborts the run on the first bad record; nothing is upserted.
	FailFast FailurePolicy = "fail_fast"
	// BestEffort skips bad records and reports them.
	BestEffort FailurePolicy = "best_effort"
)

// ParsePolicy accepts the configuration spelling. Empty means FailFast.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailFast:
		return FailFast, nil
	case BestEffort:
		return BestEffort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q: %w", s, domain.ErrConfiguration)
	}
}
