// Package filter defines the metadata predicate pushed to the retrieval
// engine. An Expression is a conjunction of tag-equality and numeric-range
// conditions; the same expression is rendered server-side as an FT.SEARCH
// pre-filter and evaluated locally during constraint-satisfaction
// re-scoring, and the two evaluations agree exactly.
package filter

import "fmt"

// Expression is a conjunction ("AND") of conditions. The zero value is
// the empty expression, which matches everything (pure semantic search).
type Expression struct {
	must []Condition
}

// NewExpression creates a conjunction of the given conditions.
func NewExpression(must ...Condition) Expression {
	return Expression{must: must}
}

// Must returns the conjunction's conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
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

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is an inclusive numeric interval. A nil boundary is unbounded.
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range. At least one boundary
// is required.
func NewRangeFilter(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	return Range{gte: gte, lte: lte}, nil
}

// Max creates an "attribute <= threshold" range.
func Max(lte float64) Range {
	return Range{lte: &lte}
}

// Between creates an inclusive "gte <= attribute <= lte" range.
func Between(gte, lte float64) Range {
	return Range{gte: &gte, lte: &lte}
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
