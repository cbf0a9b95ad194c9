package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
)

// CreateCollection creates a collection with one named dense and one named sparse field.
func (s *Store) CreateCollection(ctx context.Context, name string, dense db.DenseSpec, sparse db.SparseSpec) error {
	if dense.Size <= 0 {
		return fmt.Errorf("dense size must be positive: %w", domain.ErrConfiguration)
	}
	distance, err := toDistance(dense.Distance)
	if err != nil {
		return err
	}

	sparseParams := &qdrant.SparseVectorParams{}
	if sparse.IDF {
		sparseParams.Modifier = qdrant.Modifier_Idf.Enum()
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			point.DenseVectorName: {Size: uint64(dense.Size), Distance: distance},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			point.SparseVectorName: sparseParams,
		}),
	})
	if err != nil {
		return wrapErr(db.OpCreateCollection, err)
	}
	s.rememberDims(name, dense.Size)

	if s.payloadIndexes {
		s.createPayloadIndexes(ctx, name)
	}
	return nil
}

// createPayloadIndexes indexes the filterable metadata fields. Failures only slow filtering down.
func (s *Store) createPayloadIndexes(ctx context.Context, name string) {
	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{point.MetadataField(listing.KeyOperationType), qdrant.FieldType_FieldTypeKeyword},
		{point.MetadataField(listing.KeyPrice), qdrant.FieldType_FieldTypeFloat},
	}
	for _, idx := range indexes {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			s.logger.Warn("Failed to create payload index",
				zap.String("collection", name),
				zap.String("field", idx.field),
				zap.Error(err),
			)
		}
	}
}

// DeleteCollection drops a collection. A missing collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	s.rememberDims(name, 0)
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		if isNotFound(err) {
			return nil
		}
		return wrapErr(db.OpDeleteCollection, err)
	}
	return nil
}

// CollectionExists reports whether the collection exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, wrapErr(db.OpCollectionExists, err)
	}
	return ok, nil
}

func toDistance(d db.Distance) (qdrant.Distance, error) {
	switch d {
	case db.DistanceCosine, "":
		return qdrant.Distance_Cosine, nil
	case db.DistanceDot:
		return qdrant.Distance_Dot, nil
	case db.DistanceEuclid:
		return qdrant.Distance_Euclid, nil
	default:
		return 0, fmt.Errorf("unknown distance %q: %w", d, domain.ErrConfiguration)
	}
}
