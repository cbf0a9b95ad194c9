// Package filter describes structured predicates over point payloads.
package filter

import (
	"fmt"
	"strings"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/point"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
// The zero value matches everything.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	for name, group := range map[string][]Condition{"must": must, "should": should, "must_not": mustNot} {
		if len(group) > MaxConditionsPerGroup {
			return Expression{}, fmt.Errorf("too many %s conditions (max %d)", name, MaxConditionsPerGroup)
		}
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// ForListings builds the listing search predicate: an exact operation type
// match and an inclusive price ceiling. Absent parameters add no condition.
func ForListings(operationType string, priceMax *float64) Expression {
	var must []Condition
	if op := strings.ToLower(strings.TrimSpace(operationType)); op != "" {
		must = append(must, Condition{key: point.MetadataField(listing.KeyOperationType), match: op})
	}
	if priceMax != nil {
		ceiling := *priceMax
		must = append(must, Condition{key: point.MetadataField(listing.KeyPrice), rangeExpr: &Range{lte: &ceiling}})
	}
	return Expression{must: must}
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Lookup resolves a dotted payload path to its value.
type Lookup func(key string) (any, bool)

// Evaluate applies the expression to a payload: every must holds, at least one
// should holds (when any are given), and no must_not holds.
func (e Expression) Evaluate(lookup Lookup) bool {
	for _, c := range e.must {
		if !c.holds(lookup) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.holds(lookup) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.holds(lookup) {
			return true
		}
	}
	return false
}

// Condition is a single filter clause: either a keyword match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact keyword match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the payload path.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// holds evaluates the condition. A range over a non-numeric value never holds.
func (c Condition) holds(lookup Lookup) bool {
	v, ok := lookup(c.key)
	if !ok {
		return false
	}
	if c.IsMatch() {
		s, isStr := v.(string)
		return isStr && s == c.match
	}
	if c.IsRange() {
		f, isNum := toFloat(v)
		return isNum && c.rangeExpr.Contains(f)
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	switch {
	case gt == nil && gte == nil && lt == nil && lte == nil:
		return Range{}, fmt.Errorf("at least one range boundary is required")
	case gt != nil && gte != nil:
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	case lt != nil && lte != nil:
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within every set boundary.
func (r Range) Contains(v float64) bool {
	if r.gt != nil && v <= *r.gt {
		return false
	}
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lt != nil && v >= *r.lt {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
