package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes per-query evaluation records for offline analysis.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	header := []string{
		"query_id", "query_text", "num_predicted", "num_relevant",
		"ndcg", "ndcg@5", "ndcg@10", "recall", "error",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range records {
		errMsg := ""
		if rec.Err != nil {
			errMsg = rec.Err.Error()
		}
		row := []string{
			rec.QueryID,
			rec.QueryText,
			strconv.Itoa(rec.NumPredicted),
			strconv.Itoa(rec.NumRelevant),
			formatMetric(rec.NDCG),
			formatMetric(rec.NDCGAt5),
			formatMetric(rec.NDCGAt10),
			formatMetric(rec.Recall),
			errMsg,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", rec.QueryID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
