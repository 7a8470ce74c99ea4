package catalog

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/siprank/internal/domain/product"
)

// Hash field names used in the search index. The tag/numeric names must
// match the keys the filter compiler emits.
const (
	fieldID            = "product_id"
	fieldName          = "name"
	fieldDescription   = "description"
	fieldCategory      = "category"
	fieldTemperature   = "temperature"
	fieldPrice         = "price"
	fieldCalories      = "calories"
	fieldSugarGrams    = "sugar_g"
	fieldCaffeineMg    = "caffeine_mg"
	fieldContainsDairy = "contains_dairy"
	fieldIsVegan       = "is_vegan"
)

// HashFields encodes a product into Redis hash fields for indexing.
// The vector is appended by the caller as raw bytes under "vector".
func HashFields(p *product.Product) map[string]string {
	return map[string]string{
		fieldID:            p.ID,
		fieldName:          p.Name,
		fieldDescription:   p.Description,
		fieldCategory:      string(p.Category),
		fieldTemperature:   string(p.Temperature),
		fieldPrice:         formatFloat(p.Price),
		fieldCalories:      formatFloat(p.Calories),
		fieldSugarGrams:    formatFloat(p.SugarGrams),
		fieldCaffeineMg:    formatFloat(p.CaffeineMg),
		fieldContainsDairy: strconv.FormatBool(p.ContainsDairy),
		fieldIsVegan:       strconv.FormatBool(p.IsVegan),
	}
}

// ProductFromFields decodes Redis hash fields back into a product.
func ProductFromFields(fields map[string]string) (*product.Product, error) {
	p := &product.Product{
		ID:          fields[fieldID],
		Name:        fields[fieldName],
		Description: fields[fieldDescription],
		Category:    product.Category(fields[fieldCategory]),
		Temperature: product.Temperature(fields[fieldTemperature]),
	}

	var err error
	if p.Price, err = parseFloat(fields, fieldPrice); err != nil {
		return nil, err
	}
	if p.Calories, err = parseFloat(fields, fieldCalories); err != nil {
		return nil, err
	}
	if p.SugarGrams, err = parseFloat(fields, fieldSugarGrams); err != nil {
		return nil, err
	}
	if p.CaffeineMg, err = parseFloat(fields, fieldCaffeineMg); err != nil {
		return nil, err
	}
	if p.ContainsDairy, err = parseBool(fields, fieldContainsDairy); err != nil {
		return nil, err
	}
	if p.IsVegan, err = parseBool(fields, fieldIsVegan); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}

	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(fields map[string]string, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s %q: %w", name, raw, err)
	}
	return v, nil
}

func parseBool(fields map[string]string, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("decode %s %q: %w", name, raw, err)
	}
	return v, nil
}
