// Package product defines the immutable catalog entity and its fixed
// attribute vocabularies.
package product

import (
	"fmt"
	"strings"
)

// Category is the fixed beverage category vocabulary.
type Category string

// Beverage categories.
const (
	CategoryBrewed      Category = "brewed"
	CategoryColdBrew    Category = "cold_brew"
	CategoryEspresso    Category = "espresso"
	CategoryFrappuccino Category = "frappuccino"
	CategoryRefresher   Category = "refresher"
	CategoryTea         Category = "tea"
)

// IsValid reports whether the category is in the vocabulary.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBrewed, CategoryColdBrew, CategoryEspresso,
		CategoryFrappuccino, CategoryRefresher, CategoryTea:
		return true
	}
	return false
}

// Temperature is the fixed serving-temperature vocabulary.
type Temperature string

// Serving temperatures.
const (
	TemperatureHot     Temperature = "hot"
	TemperatureIced    Temperature = "iced"
	TemperatureBlended Temperature = "blended"
)

// IsValid reports whether the temperature is in the vocabulary.
func (t Temperature) IsValid() bool {
	switch t {
	case TemperatureHot, TemperatureIced, TemperatureBlended:
		return true
	}
	return false
}

// Product is one catalog item. Reference data, immutable after load.
type Product struct {
	ID            string
	Name          string
	Description   string
	Category      Category
	Temperature   Temperature
	Price         float64
	Calories      float64
	SugarGrams    float64
	CaffeineMg    float64
	ContainsDairy bool
	IsVegan       bool
}

// Validate checks identity, vocabulary membership, and non-negative numerics.
func (p *Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("product %s: name is required", p.ID)
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("product %s: unknown category %q", p.ID, p.Category)
	}
	if !p.Temperature.IsValid() {
		return fmt.Errorf("product %s: unknown temperature %q", p.ID, p.Temperature)
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"price", p.Price},
		{"calories", p.Calories},
		{"sugar_g", p.SugarGrams},
		{"caffeine_mg", p.CaffeineMg},
	} {
		if v.value < 0 {
			return fmt.Errorf("product %s: %s must be non-negative, got %g", p.ID, v.name, v.value)
		}
	}
	return nil
}

// Tag returns the value of a tag-indexed attribute.
// Implements filter.FieldView together with Numeric.
func (p *Product) Tag(key string) (string, bool) {
	switch key {
	case "category":
		return string(p.Category), true
	case "temperature":
		return string(p.Temperature), true
	case "contains_dairy":
		return boolTag(p.ContainsDairy), true
	case "is_vegan":
		return boolTag(p.IsVegan), true
	}
	return "", false
}

// Numeric returns the value of a numeric-indexed attribute.
func (p *Product) Numeric(key string) (float64, bool) {
	switch key {
	case "price":
		return p.Price, true
	case "calories":
		return p.Calories, true
	case "sugar_g":
		return p.SugarGrams, true
	case "caffeine_mg":
		return p.CaffeineMg, true
	}
	return 0, false
}

// EmbeddingText composes the text representation indexed for semantic
// search: name, description, and the attributes a customer would phrase
// a query around.
func (p *Product) EmbeddingText() string {
	parts := []string{p.Name}

	if p.Description != "" {
		parts = append(parts, p.Description)
	}

	parts = append(parts,
		"Category: "+string(p.Category),
		"Temperature: "+string(p.Temperature),
	)

	if !p.ContainsDairy {
		parts = append(parts, "Dairy-free")
	}
	if p.IsVegan {
		parts = append(parts, "Vegan")
	}

	parts = append(parts,
		fmt.Sprintf("%.0f calories", p.Calories),
		fmt.Sprintf("%.0fg sugar", p.SugarGrams),
		fmt.Sprintf("%.0fmg caffeine", p.CaffeineMg),
	)

	return strings.Join(parts, ". ")
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
