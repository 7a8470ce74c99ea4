// Package submit renders ranked pipeline output for a set of test
// queries into the submission CSV format: one row per query,
// `query_id,products` with a semicolon-joined ordered id list.
package submit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/usecase/eval"
)

// Generator produces submission rows from the ranking pipeline.
type Generator struct {
	ranker eval.Ranker
	logger *zap.Logger
}

// NewGenerator creates a submission generator.
func NewGenerator(ranker eval.Ranker, logger *zap.Logger) *Generator {
	return &Generator{ranker: ranker, logger: logger}
}

// Row is one submission line.
type Row struct {
	QueryID  string
	Products []string
}

// Generate runs the pipeline for every query in order. A failed query
// yields an empty product list rather than aborting the run.
func (g *Generator) Generate(ctx context.Context, queries []eval.Query) []Row {
	rows := make([]Row, 0, len(queries))
	for _, q := range queries {
		predicted, err := g.ranker.Rank(ctx, q.Text)
		if err != nil {
			g.logger.Warn("query failed, writing empty row",
				zap.String("query_id", q.ID),
				zap.Error(err),
			)
			predicted = nil
		}
		rows = append(rows, Row{QueryID: q.ID, Products: predicted})
	}
	return rows
}

// WriteCSV writes the submission rows with the expected header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"query_id", "products"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.QueryID, strings.Join(row.Products, ";")}); err != nil {
			return fmt.Errorf("write row %s: %w", row.QueryID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report is the outcome of validating a submission.
type Report struct {
	Rows      int
	EmptyRows []string
}

// Validate checks submission rows for structural problems: duplicate
// query ids and duplicate product ids within a row are errors; empty
// rows are legal but reported for review.
func Validate(rows []Row) (Report, error) {
	rep := Report{Rows: len(rows)}

	seenQuery := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.QueryID == "" {
			return rep, fmt.Errorf("row with empty query_id")
		}
		if _, dup := seenQuery[row.QueryID]; dup {
			return rep, fmt.Errorf("duplicate query_id %q", row.QueryID)
		}
		seenQuery[row.QueryID] = struct{}{}

		if len(row.Products) == 0 {
			rep.EmptyRows = append(rep.EmptyRows, row.QueryID)
			continue
		}
		seenProduct := make(map[string]struct{}, len(row.Products))
		for _, id := range row.Products {
			if id == "" {
				return rep, fmt.Errorf("query %s: empty product id", row.QueryID)
			}
			if _, dup := seenProduct[id]; dup {
				return rep, fmt.Errorf("query %s: duplicate product id %q", row.QueryID, id)
			}
			seenProduct[id] = struct{}{}
		}
	}

	return rep, nil
}
