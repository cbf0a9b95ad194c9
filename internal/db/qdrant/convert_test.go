package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
)

func floatPtr(f float64) *float64 { return &f }

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]any{
		"content": "casa",
		"metadata": map[string]any{
			"price":          120000.0,
			"operation_type": "venta",
			"rooms":          "3",
		},
		"tags": []any{"a", "b"},
		"flag": true,
		"none": nil,
	}

	payload, err := toPayload(in)
	if err != nil {
		t.Fatalf("toPayload: %v", err)
	}
	out := fromPayload(payload)

	meta, ok := out["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata lost: %#v", out["metadata"])
	}
	if meta["price"] != 120000.0 || meta["operation_type"] != "venta" {
		t.Errorf("unexpected metadata: %#v", meta)
	}
	if out["content"] != "casa" || out["flag"] != true || out["none"] != nil {
		t.Errorf("unexpected payload: %#v", out)
	}
	if tags, ok := out["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("unexpected tags: %#v", out["tags"])
	}
}

func TestToValue_Unsupported(t *testing.T) {
	if _, err := toValue(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestPointIDs(t *testing.T) {
	num := toPointID(point.NewID("42"))
	if num.GetNum() != 42 || pointIDString(num) != "42" {
		t.Errorf("unexpected numeric id: %v", num)
	}
	id := point.NewID("abc")
	u := toPointID(id)
	if u.GetUuid() != id.UUID() || pointIDString(u) != id.UUID() {
		t.Errorf("unexpected uuid id: %v", u)
	}
	if pointIDString(nil) != "" {
		t.Error("nil id should be empty")
	}
}

func TestToPointStruct_NamedVectors(t *testing.T) {
	p := point.Point{
		ID:      point.NumID(1),
		Dense:   []float32{0.1, 0.2},
		Sparse:  domain.SparseVector{Indices: []uint32{7}, Values: []float32{1.5}},
		Payload: map[string]any{"content": "x"},
	}
	ps, err := toPointStruct(&p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	named := ps.GetVectors().GetVectors().GetVectors()
	if _, ok := named[point.DenseVectorName]; !ok {
		t.Errorf("missing dense vector %q", point.DenseVectorName)
	}
	if _, ok := named[point.SparseVectorName]; !ok {
		t.Errorf("missing sparse vector %q", point.SparseVectorName)
	}
}

func TestToFilter(t *testing.T) {
	if toFilter(filter.Expression{}) != nil {
		t.Error("empty expression should produce no filter")
	}

	f := toFilter(filter.ForListings("venta", floatPtr(100)))
	if len(f.GetMust()) != 2 {
		t.Fatalf("expected 2 must conditions, got %d", len(f.GetMust()))
	}
	match := f.GetMust()[0].GetField()
	if match.GetKey() != "metadata.operation_type" || match.GetMatch().GetKeyword() != "venta" {
		t.Errorf("unexpected match condition: %v", match)
	}
	rng := f.GetMust()[1].GetField()
	if rng.GetKey() != "metadata.price" || rng.GetRange().GetLte() != 100 {
		t.Errorf("unexpected range condition: %v", rng)
	}
	if rng.GetRange().Gt != nil {
		t.Error("unset bounds must stay nil")
	}
}

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "collection missing"), domain.ErrNotFound},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), domain.ErrTransport},
		{"plain error", context.DeadlineExceeded, domain.ErrTransport},
		{"invalid", status.Error(codes.InvalidArgument, "bad filter"), domain.ErrStore},
		{"dimension", status.Error(codes.InvalidArgument, "Wrong input: Vector dimension error"), domain.ErrVectorDimMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr(db.OpUpsert, tt.err)
			if !errors.Is(err, tt.want) {
				t.Errorf("wrapErr() = %v, want %v", err, tt.want)
			}
			var dbErr *db.Error
			if !errors.As(err, &dbErr) || dbErr.Op != db.OpUpsert {
				t.Errorf("expected db.Error with op %s", db.OpUpsert)
			}
		})
	}
}

func TestToDistance(t *testing.T) {
	if d, err := toDistance(""); err != nil || d != qdrant.Distance_Cosine {
		t.Errorf("default distance = %v, %v", d, err)
	}
	if _, err := toDistance("manhattan"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewStore_RequiresHost(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error without host")
	}
}
