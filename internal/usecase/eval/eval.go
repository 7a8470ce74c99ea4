package eval

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Ranker is the pipeline surface the evaluator drives.
type Ranker interface {
	Rank(ctx context.Context, query string) ([]string, error)
}

// Record is one query's evaluation outcome.
type Record struct {
	QueryID      string
	QueryText    string
	NumPredicted int
	NumRelevant  int
	NDCG         float64
	NDCGAt5      float64
	NDCGAt10     float64
	Recall       float64
	Err          error
}

// Query is one labeled training query.
type Query struct {
	ID          string
	Text        string
	GroundTruth []string
}

// Runner evaluates the pipeline over labeled queries.
type Runner struct {
	ranker Ranker
	logger *zap.Logger
}

// NewRunner creates an evaluation runner.
func NewRunner(ranker Ranker, logger *zap.Logger) *Runner {
	return &Runner{ranker: ranker, logger: logger}
}

// Evaluate runs the pipeline once for the query and scores the
// predicted ranking against the ground truth.
func (r *Runner) Evaluate(ctx context.Context, q Query) Record {
	rec := Record{
		QueryID:     q.ID,
		QueryText:   q.Text,
		NumRelevant: len(q.GroundTruth),
	}

	predicted, err := r.ranker.Rank(ctx, q.Text)
	if err != nil {
		// A failed query scores zero; the batch keeps going.
		r.logger.Warn("query evaluation failed",
			zap.String("query_id", q.ID),
			zap.Error(err),
		)
		rec.Err = err
		return rec
	}

	rec.NumPredicted = len(predicted)
	rec.NDCG = NDCG(predicted, q.GroundTruth, 0)
	rec.NDCGAt5 = NDCG(predicted, q.GroundTruth, 5)
	rec.NDCGAt10 = NDCG(predicted, q.GroundTruth, 10)
	rec.Recall = Recall(predicted, q.GroundTruth)
	return rec
}

// Run evaluates every query in order and returns all records. Context
// cancellation stops the run early with the records gathered so far.
func (r *Runner) Run(ctx context.Context, queries []Query) []Record {
	records := make([]Record, 0, len(queries))
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		records = append(records, r.Evaluate(ctx, q))
	}
	return records
}

// Stats summarizes one metric's distribution across a batch.
type Stats struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
}

// Summary aggregates a batch of evaluation records.
type Summary struct {
	Queries  int
	Failed   int
	NDCG     Stats
	NDCGAt5  Stats
	NDCGAt10 Stats
	Recall   Stats

	// Best and Worst hold up to n records by NDCG, for diagnostics.
	Best  []Record
	Worst []Record
	// ZeroResult lists query ids whose pipeline returned no products.
	ZeroResult []string
}

// Summarize computes aggregate statistics over a batch. n bounds the
// best/worst diagnostic lists.
func Summarize(records []Record, n int) Summary {
	s := Summary{Queries: len(records)}
	if len(records) == 0 {
		return s
	}

	ndcg := make([]float64, 0, len(records))
	ndcg5 := make([]float64, 0, len(records))
	ndcg10 := make([]float64, 0, len(records))
	recall := make([]float64, 0, len(records))
	for _, rec := range records {
		ndcg = append(ndcg, rec.NDCG)
		ndcg5 = append(ndcg5, rec.NDCGAt5)
		ndcg10 = append(ndcg10, rec.NDCGAt10)
		recall = append(recall, rec.Recall)
		if rec.Err != nil {
			s.Failed++
		}
		if rec.NumPredicted == 0 && rec.Err == nil {
			s.ZeroResult = append(s.ZeroResult, rec.QueryID)
		}
	}

	s.NDCG = describe(ndcg)
	s.NDCGAt5 = describe(ndcg5)
	s.NDCGAt10 = describe(ndcg10)
	s.Recall = describe(recall)

	byNDCG := make([]Record, len(records))
	copy(byNDCG, records)
	sort.SliceStable(byNDCG, func(i, j int) bool { return byNDCG[i].NDCG > byNDCG[j].NDCG })
	if n > len(byNDCG) {
		n = len(byNDCG)
	}
	s.Best = append(s.Best, byNDCG[:n]...)
	for i := len(byNDCG) - 1; i >= len(byNDCG)-n; i-- {
		s.Worst = append(s.Worst, byNDCG[i])
	}

	return s
}

func describe(values []float64) Stats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Stats{
		Mean:   sum / float64(len(sorted)),
		Median: quantile(sorted, 0.5),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P25:    quantile(sorted, 0.25),
		P75:    quantile(sorted, 0.75),
	}
}

// quantile linearly interpolates over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
