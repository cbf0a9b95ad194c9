// Package point defines the unit written to the vector store.
package point

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
)

// Vector field names shared by ingestion and search.
const (
	DenseVectorName  = "vector"
	SparseVectorName = "text"
)

// Payload keys.
const (
	PayloadContent  = "content"
	PayloadMetadata = "metadata"
)

// idNamespace seeds UUIDv5 ids for non-numeric feed identifiers.
var idNamespace = uuid.MustParse("6f1c1e9a-3a52-4c8e-9d0b-2f6a7c1d5e44")

// ID is a store point identifier: a non-negative integer or a UUID.
type ID struct {
	num  uint64
	uuid string
}

// NewID maps a feed identifier onto a store id. Numeric ids are kept as numbers,
// anything else becomes a deterministic UUIDv5.
func NewID(feedID string) ID {
	if n, err := strconv.ParseUint(feedID, 10, 64); err == nil {
		return ID{num: n}
	}
	return ID{uuid: uuid.NewSHA1(idNamespace, []byte(feedID)).String()}
}

// NumID builds a numeric id.
func NumID(n uint64) ID { return ID{num: n} }

// IsUUID reports whether the id is a UUID.
func (id ID) IsUUID() bool { return id.uuid != "" }

// Num returns the numeric id.
func (id ID) Num() uint64 { return id.num }

// UUID returns the UUID id.
func (id ID) UUID() string { return id.uuid }

func (id ID) String() string {
	if id.uuid != "" {
		return id.uuid
	}
	return strconv.FormatUint(id.num, 10)
}

// Point is one listing with both vectors and its payload.
type Point struct {
	ID      ID
	Dense   []float32
	Sparse  domain.SparseVector
	Payload map[string]any
}

// FromDocument zips a document with its vectors.
func FromDocument(doc listing.Document, dense []float32, sparse domain.SparseVector) (Point, error) {
	if len(dense) == 0 {
		return Point{}, fmt.Errorf("listing %s: empty dense vector: %w", doc.ID(), domain.ErrVectorDimMismatch)
	}
	if err := sparse.Validate(); err != nil {
		return Point{}, fmt.Errorf("listing %s: %w", doc.ID(), err)
	}
	return Point{
		ID:     NewID(doc.ID()),
		Dense:  dense,
		Sparse: sparse,
		Payload: map[string]any{
			PayloadContent:  doc.Content(),
			PayloadMetadata: doc.Metadata().Payload(),
		},
	}, nil
}

// MetadataField builds the payload path of a metadata key, e.g. "metadata.price".
func MetadataField(key string) string {
	return PayloadMetadata + "." + key
}
