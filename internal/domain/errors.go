package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing collection or resource.
	ErrNotFound = errors.New("not found")
	// ErrTransport signals a network or protocol failure reaching an external system.
	ErrTransport = errors.New("transport error")
	// ErrNormalization signals a malformed feed record.
	ErrNormalization = errors.New("normalization error")
	// ErrStore signals that the vector store rejected an operation.
	ErrStore = errors.New("store error")
	// ErrConfiguration signals missing or invalid settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRequest signals a request that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrIngestionInProgress signals a concurrent ingestion run for the same tenant.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ErrorKind is the coarse classification reported to callers of ingestion and search.
type ErrorKind string

// Error kinds.
const (
	KindNone           ErrorKind = ""
	KindTransport      ErrorKind = "transport"
	KindNotFound       ErrorKind = "not_found"
	KindNormalization  ErrorKind = "normalization"
	KindStore          ErrorKind = "store"
	KindConfiguration  ErrorKind = "configuration"
	KindEmbedding      ErrorKind = "embedding"
	KindConflict       ErrorKind = "conflict"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindInternal       ErrorKind = "internal"
)

var kindTable = []struct {
	sentinel error
	kind     ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrNormalization, KindNormalization},
	{ErrConfiguration, KindConfiguration},
	{ErrIngestionInProgress, KindConflict},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrVectorDimMismatch, KindStore},
	{ErrStore, KindStore},
	{ErrEmbeddingQuotaExceeded, KindEmbedding},
	{ErrRateLimited, KindEmbedding},
	{ErrEmbeddingProviderError, KindEmbedding},
	{ErrTransport, KindTransport},
}

// KindOf classifies err. The first matching sentinel wins, so a NotFound that
// also wraps a transport error is reported as not_found.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, e := range kindTable {
		if errors.Is(err, e.sentinel) {
			return e.kind
		}
	}
	return KindInternal
}

// NormalizationError reports why a single feed record could not be turned into a document.
type NormalizationError struct {
	RecordID string
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s: %v", ErrNormalization.Error(), e.Err)
	}
	return fmt.Sprintf("%s: record %s: %v", ErrNormalization.Error(), e.RecordID, e.Err)
}

// Is makes errors.Is(err, ErrNormalization) hold for every NormalizationError.
func (e *NormalizationError) Is(target error) bool { return target == ErrNormalization }

func (e *NormalizationError) Unwrap() error { return e.Err }

// NewNormalizationError creates a normalization error for the given record.
func NewNormalizationError(recordID string, err error) error {
	return &NormalizationError{RecordID: recordID, Err: err}
}
