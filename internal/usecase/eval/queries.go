package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadQueriesFile reads labeled queries from a CSV file on disk.
func LoadQueriesFile(path string) ([]Query, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open queries %s: %w", path, err)
	}
	defer f.Close()

	qs, err := LoadQueries(f)
	if err != nil {
		return nil, fmt.Errorf("load queries %s: %w", path, err)
	}
	return qs, nil
}

// LoadQueries reads labeled queries from CSV. Required columns:
// query_id, query_text. The relevant_products column is optional (test
// queries ship without it); when present it is parsed per
// ParseGroundTruth.
func LoadQueries(r io.Reader) ([]Query, error) {
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
	for _, name := range []string{"query_id", "query_text"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var queries []Query
	seen := make(map[string]struct{})

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		q := Query{
			ID:          field(record, "query_id"),
			Text:        field(record, "query_text"),
			GroundTruth: ParseGroundTruth(field(record, "relevant_products")),
		}
		if q.ID == "" {
			return nil, fmt.Errorf("line %d: empty query_id", line)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate query id %q", line, q.ID)
		}
		seen[q.ID] = struct{}{}
		queries = append(queries, q)
	}

	return queries, nil
}
