package qdrant

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/search/filter"
)

func toPointStruct(p *point.Point) (*qdrant.PointStruct, error) {
	payload, err := toPayload(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("point %s payload: %w", p.ID, err)
	}
	return &qdrant.PointStruct{
		Id: toPointID(p.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			point.DenseVectorName:  qdrant.NewVectorDense(p.Dense),
			point.SparseVectorName: qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values),
		}),
		Payload: payload,
	}, nil
}

func toPointID(id point.ID) *qdrant.PointId {
	if id.IsUUID() {
		return qdrant.NewIDUUID(id.UUID())
	}
	return qdrant.NewIDNum(id.Num())
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func toPayload(m map[string]any) (map[string]*qdrant.Value, error) {
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toValue(v any) (*qdrant.Value, error) {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}, nil
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}, nil
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}, nil
	case map[string]any:
		fields, err := toPayload(val)
		if err != nil {
			return nil, err
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	case []any:
		list := make([]*qdrant.Value, len(val))
		for i, item := range val {
			iv, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list[i] = iv
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: list}}}, nil
	case []string:
		list := make([]any, len(val))
		for i, s := range val {
			list[i] = s
		}
		return toValue(list)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

func fromPayload(m map[string]*qdrant.Value) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		return fromPayload(val.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = fromValue(item)
		}
		return list
	default:
		return nil
	}
}

// toFilter translates a filter expression. An empty expression yields no filter.
func toFilter(e filter.Expression) *qdrant.Filter {
	if e.IsEmpty() {
		return nil
	}
	return &qdrant.Filter{
		Must:    toConditions(e.Must()),
		Should:  toConditions(e.Should()),
		MustNot: toConditions(e.MustNot()),
	}
}

func toConditions(cs []filter.Condition) []*qdrant.Condition {
	if len(cs) == 0 {
		return nil
	}
	out := make([]*qdrant.Condition, 0, len(cs))
	for _, c := range cs {
		switch {
		case c.IsMatch():
			out = append(out, qdrant.NewMatch(c.Key(), c.Match()))
		case c.IsRange():
			r := c.Range()
			out = append(out, qdrant.NewRange(c.Key(), &qdrant.Range{
				Gt:  r.GT(),
				Gte: r.GTE(),
				Lt:  r.LT(),
				Lte: r.LTE(),
			}))
		}
	}
	return out
}

// wrapErr classifies a gRPC failure: unreachable or timed out is a transport
// error, NotFound maps to domain.ErrNotFound, anything else the store rejected.
func wrapErr(op string, err error) error {
	var kind error
	switch {
	case isNotFound(err):
		kind = domain.ErrNotFound
	case isTransport(err):
		kind = domain.ErrTransport
	case isDimensionError(err):
		kind = fmt.Errorf("%w: %w", domain.ErrVectorDimMismatch, domain.ErrStore)
	default:
		kind = domain.ErrStore
	}
	return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", kind, err)}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

func isTransport(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isDimensionError(err error) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		return false
	}
	return strings.Contains(strings.ToLower(st.Message()), "dimension")
}
