package ingest

import (
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// Stage is a step of an ingestion run.
type Stage string

// Stages in execution order. A failed run reports the stage it stopped in.
const (
	StageStart           Stage = "start"
	StageCollectionReset Stage = "collection_reset"
	StageFeedFetch       Stage = "feed_fetch"
	StageNormalize       Stage = "normalize"
	StageEmbed           Stage = "embed"
	StagePointBuild      Stage = "point_build"
	StageUpsert          Stage = "upsert"
	StageDone            Stage = "done"
)

// Status is the outcome of a run.
type Status string

// Run outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Stable, human-readable outcome messages.
const (
	MsgCompleted          = "ingestion completed successfully"
	MsgCollectionReset    = "collection reset failed"
	MsgCollectionCreate   = "collection creation failed"
	MsgFeedStatus         = "failed to fetch feed data"
	MsgFeedConnect        = "failed to connect to feed"
	MsgNormalize          = "failed to process listings"
	MsgSparseEmbeddings   = "failed to generate sparse embeddings"
	MsgDenseEmbeddings    = "failed to generate dense embeddings"
	MsgPointBuild         = "failed to prepare points"
	MsgUpsert             = "failed to upsert points"
	MsgIngestionConflict  = "ingestion already in progress"
	MsgInvalidIngestInput = "invalid ingestion request"
)

// FailedRecord is a feed record skipped under the best-effort policy.
type FailedRecord struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Report describes one run. On failure Stage names the step that failed.
type Report struct {
	Tenant    string           `json:"tenant"`
	Status    Status           `json:"status"`
	Stage     Stage            `json:"stage"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Message   string           `json:"message"`
	Records   int              `json:"records"`
	Documents int              `json:"documents"`
	Upserted  int              `json:"upserted"`
	Count     uint64           `json:"count"`
	Failed    []FailedRecord   `json:"failed,omitempty"`
	Tokens    int              `json:"embedding_tokens"`
	Duration  time.Duration    `json:"-"`
}

// Succeeded reports whether the run reached StageDone.
func (r *Report) Succeeded() bool { return r.Status == StatusSuccess }

func (r *Report) fail(stage Stage, msg string, err error) {
	r.Status = StatusFailed
	r.Stage = stage
	r.Message = msg
	r.Kind = domain.KindOf(err)
}
