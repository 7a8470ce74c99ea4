package constraint

import "github.com/kailas-cloud/siprank/internal/domain/search/filter"

// Index field names for the product catalog.
const (
	FieldCategory      = "category"
	FieldTemperature   = "temperature"
	FieldPrice         = "price"
	FieldCalories      = "calories"
	FieldSugarGrams    = "sugar_g"
	FieldCaffeineMg    = "caffeine_mg"
	FieldContainsDairy = "contains_dairy"
	FieldIsVegan       = "is_vegan"
)

// Compile translates a constraint set into a metadata predicate: one
// sub-condition per present field, combined as a conjunction. An empty
// set compiles to the empty expression, which signals "no filtering,
// semantic search only".
//
// DairyFree and Vegan contribute a condition only when true: "not dairy
// free" is not a request for dairy.
func Compile(s Set) filter.Expression {
	var conds []filter.Condition

	if s.Category != nil {
		conds = append(conds, mustMatch(FieldCategory, string(*s.Category)))
	}
	if s.Temperature != nil {
		conds = append(conds, mustMatch(FieldTemperature, string(*s.Temperature)))
	}
	if s.MaxCalories != nil {
		conds = append(conds, mustRange(FieldCalories, filter.Max(*s.MaxCalories)))
	}
	if s.MaxSugar != nil {
		conds = append(conds, mustRange(FieldSugarGrams, filter.Max(*s.MaxSugar)))
	}
	if s.MaxPrice != nil {
		conds = append(conds, mustRange(FieldPrice, filter.Max(*s.MaxPrice)))
	}
	if s.DairyFree != nil && *s.DairyFree {
		conds = append(conds, mustMatch(FieldContainsDairy, "false"))
	}
	if s.Vegan != nil && *s.Vegan {
		conds = append(conds, mustMatch(FieldIsVegan, "true"))
	}
	if s.CaffeineLevel != nil {
		minMg, maxMg := s.CaffeineLevel.Band()
		conds = append(conds, mustRange(FieldCaffeineMg, filter.Between(minMg, maxMg)))
	}

	return filter.NewExpression(conds...)
}

// mustMatch builds a tag condition for a known-good key/value pair.
// Keys are package constants and values come from validated vocabularies,
// so construction cannot fail.
func mustMatch(key, value string) filter.Condition {
	c, err := filter.NewMatch(key, value)
	if err != nil {
		panic(err)
	}
	return c
}

func mustRange(key string, r filter.Range) filter.Condition {
	c, err := filter.NewRange(key, r)
	if err != nil {
		panic(err)
	}
	return c
}
