// Package catalog loads the product catalog from CSV and serves it as
// immutable in-memory reference data.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/product"
)

// Catalog is the loaded product set. Read-only after construction.
type Catalog struct {
	byID  map[string]*product.Product
	items []*product.Product
}

// LoadFile reads the catalog from a CSV file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// Load reads the catalog from CSV. The first row is the header; column
// order is not fixed. Required columns: product_id, name, category,
// temperature, price, calories, sugar_g, caffeine_mg, contains_dairy,
// is_vegan. Optional: description.
func Load(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	required := []string{
		"product_id", "name", "category", "temperature",
		"price", "calories", "sugar_g", "caffeine_mg",
		"contains_dairy", "is_vegan",
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	c := &Catalog{byID: make(map[string]*product.Product)}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate product id %q", line, p.ID)
		}

		c.byID[p.ID] = p
		c.items = append(c.items, p)
	}

	if len(c.items) == 0 {
		return nil, fmt.Errorf("catalog is empty: %w", domain.ErrCatalogNotLoaded)
	}

	return c, nil
}

func parseRow(record []string, cols map[string]int) (*product.Product, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	numeric := func(name string) (float64, error) {
		raw := field(name)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
		}
		return v, nil
	}

	boolean := func(name string) (bool, error) {
		raw := strings.ToLower(field(name))
		switch raw {
		case "", "false", "0", "no":
			return false, nil
		case "true", "1", "yes":
			return true, nil
		}
		return false, fmt.Errorf("parse %s %q: not a boolean", name, raw)
	}

	p := &product.Product{
		ID:          field("product_id"),
		Name:        field("name"),
		Description: field("description"),
		Category:    product.Category(field("category")),
		Temperature: product.Temperature(field("temperature")),
	}

	var err error
	if p.Price, err = numeric("price"); err != nil {
		return nil, err
	}
	if p.Calories, err = numeric("calories"); err != nil {
		return nil, err
	}
	if p.SugarGrams, err = numeric("sugar_g"); err != nil {
		return nil, err
	}
	if p.CaffeineMg, err = numeric("caffeine_mg"); err != nil {
		return nil, err
	}
	if p.ContainsDairy, err = boolean("contains_dairy"); err != nil {
		return nil, err
	}
	if p.IsVegan, err = boolean("is_vegan"); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Get returns a product by id.
func (c *Catalog) Get(id string) (*product.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// All returns every product sorted by id.
func (c *Catalog) All() []*product.Product {
	out := make([]*product.Product, len(c.items))
	copy(out, c.items)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.items)
}
