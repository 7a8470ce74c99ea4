// Package constraint models the structured constraints extracted from a
// natural-language query. Every field is optional; absence means
// "unconstrained". Enum values are validated against their fixed
// vocabularies at the extraction boundary, and anything out of vocabulary
// is discarded rather than passed downstream.
package constraint

import "github.com/kailas-cloud/siprank/internal/domain/product"

// CaffeineLevel is the fixed caffeine-band vocabulary.
type CaffeineLevel string

// Caffeine levels.
const (
	CaffeineNone   CaffeineLevel = "none"
	CaffeineLow    CaffeineLevel = "low"
	CaffeineMedium CaffeineLevel = "medium"
	CaffeineHigh   CaffeineLevel = "high"
)

// IsValid reports whether the level is in the vocabulary.
func (l CaffeineLevel) IsValid() bool {
	switch l {
	case CaffeineNone, CaffeineLow, CaffeineMedium, CaffeineHigh:
		return true
	}
	return false
}

// Band returns the inclusive milligram interval for the level.
// Adjacent bands overlap on purpose (low/medium share 75-100,
// medium/high share 200-250): a deliberate leniency policy tuned to the
// actual product distribution, not disjoint buckets.
func (l CaffeineLevel) Band() (minMg, maxMg float64) {
	switch l {
	case CaffeineNone:
		return 0, 15
	case CaffeineLow:
		return 15, 100
	case CaffeineMedium:
		return 75, 250
	case CaffeineHigh:
		return 200, 500
	}
	return 0, 0
}

// Set is one query's extracted constraints. Nil fields are unconstrained.
type Set struct {
	Category      *product.Category
	Temperature   *product.Temperature
	MaxCalories   *float64
	MaxSugar      *float64
	MaxPrice      *float64
	DairyFree     *bool
	Vegan         *bool
	CaffeineLevel *CaffeineLevel
}

// IsEmpty reports whether every field is absent.
func (s Set) IsEmpty() bool {
	return s.Category == nil &&
		s.Temperature == nil &&
		s.MaxCalories == nil &&
		s.MaxSugar == nil &&
		s.MaxPrice == nil &&
		s.DairyFree == nil &&
		s.Vegan == nil &&
		s.CaffeineLevel == nil
}

// Sanitized returns a copy with out-of-vocabulary enum values and
// negative thresholds dropped. Invalid values are treated as absent.
func (s Set) Sanitized() Set {
	out := s
	if out.Category != nil && !out.Category.IsValid() {
		out.Category = nil
	}
	if out.Temperature != nil && !out.Temperature.IsValid() {
		out.Temperature = nil
	}
	if out.CaffeineLevel != nil && !out.CaffeineLevel.IsValid() {
		out.CaffeineLevel = nil
	}
	if out.MaxCalories != nil && *out.MaxCalories < 0 {
		out.MaxCalories = nil
	}
	if out.MaxSugar != nil && *out.MaxSugar < 0 {
		out.MaxSugar = nil
	}
	if out.MaxPrice != nil && *out.MaxPrice < 0 {
		out.MaxPrice = nil
	}
	return out
}

// Relaxed returns a copy with the two most commonly over-restrictive
// fields forced absent. Used for the one-shot empty-result fallback.
func (s Set) Relaxed() Set {
	out := s
	out.MaxPrice = nil
	out.CaffeineLevel = nil
	return out
}
