package eval

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNDCG_EmptyInputs(t *testing.T) {
	if got := NDCG(nil, []string{"A"}, 0); got != 0.0 {
		t.Errorf("empty predictions: got %g, want 0", got)
	}
	if got := NDCG([]string{"A"}, nil, 0); got != 0.0 {
		t.Errorf("empty ground truth: got %g, want 0", got)
	}
}

func TestNDCG_NoIntersection(t *testing.T) {
	if got := NDCG([]string{"X", "Y"}, []string{"A", "B"}, 0); got != 0.0 {
		t.Errorf("got %g, want 0", got)
	}
}

func TestNDCG_PerfectRanking(t *testing.T) {
	gt := []string{"A", "B", "C"}
	if got := NDCG([]string{"A", "B", "C"}, gt, 0); !almostEqual(got, 1.0) {
		t.Errorf("perfect ranking: got %g, want 1", got)
	}
}

func TestNDCG_WorseRankingScoresLower(t *testing.T) {
	gt := []string{"A", "B", "C"}
	perfect := NDCG([]string{"A", "B", "C"}, gt, 0)
	reversed := NDCG([]string{"C", "B", "A"}, gt, 0)
	if reversed >= perfect {
		t.Errorf("reversed (%g) must score below perfect (%g)", reversed, perfect)
	}
	if reversed <= 0 {
		t.Errorf("reversed ranking still intersects, got %g", reversed)
	}
}

func TestNDCG_Truncation(t *testing.T) {
	gt := []string{"A"}
	// The only relevant item sits at position 6; NDCG@5 must miss it.
	predicted := []string{"X1", "X2", "X3", "X4", "X5", "A"}
	if got := NDCG(predicted, gt, 5); got != 0.0 {
		t.Errorf("NDCG@5: got %g, want 0", got)
	}
	if got := NDCG(predicted, gt, 0); got <= 0 {
		t.Errorf("untruncated NDCG: got %g, want > 0", got)
	}
}

func TestNDCG_SingleHitValue(t *testing.T) {
	// gt = [A, B]: relevances 2, 1. Prediction [A] alone:
	// DCG = 2/log2(2) = 2; IDCG = 2/log2(2) + 1/log2(3).
	got := NDCG([]string{"A"}, []string{"A", "B"}, 0)
	want := 2.0 / (2.0 + 1.0/math.Log2(3))
	if !almostEqual(got, want) {
		t.Errorf("got %g, want %g", got, want)
	}
}

func TestRecall(t *testing.T) {
	tests := []struct {
		name      string
		predicted []string
		gt        []string
		want      float64
	}{
		{"empty ground truth", []string{"A"}, nil, 0.0},
		{"superset", []string{"A", "B", "C"}, []string{"A", "B"}, 1.0},
		{"partial", []string{"A", "X"}, []string{"A", "B"}, 0.5},
		{"disjoint", []string{"X"}, []string{"A", "B"}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recall(tt.predicted, tt.gt); !almostEqual(got, tt.want) {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
}

func TestParseGroundTruth(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"semicolon", "BEV_001;BEV_002;BEV_003", []string{"BEV_001", "BEV_002", "BEV_003"}},
		{"semicolon with spaces", " BEV_001 ; BEV_002 ", []string{"BEV_001", "BEV_002"}},
		{"bracketed single quotes", "['BEV_001', 'BEV_002']", []string{"BEV_001", "BEV_002"}},
		{"bracketed double quotes", `["BEV_001", "BEV_002"]`, []string{"BEV_001", "BEV_002"}},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"empty brackets", "[]", []string{}},
		{"trailing separator", "BEV_001;", []string{"BEV_001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseGroundTruth(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

type stubRanker struct {
	byQuery map[string][]string
	err     error
}

func (s *stubRanker) Rank(_ context.Context, query string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byQuery[query], nil
}

func TestEvaluate(t *testing.T) {
	ranker := &stubRanker{byQuery: map[string][]string{
		"vegan cold brew": {"CBR_001", "CBR_002", "TEA_001"},
	}}
	runner := NewRunner(ranker, zap.NewNop())

	rec := runner.Evaluate(context.Background(), Query{
		ID:          "Q1",
		Text:        "vegan cold brew",
		GroundTruth: []string{"CBR_001", "CBR_002"},
	})

	if rec.Err != nil {
		t.Fatalf("unexpected error: %v", rec.Err)
	}
	if rec.NumPredicted != 3 || rec.NumRelevant != 2 {
		t.Errorf("counts = %d/%d, want 3/2", rec.NumPredicted, rec.NumRelevant)
	}
	if !almostEqual(rec.NDCG, 1.0) {
		t.Errorf("ndcg = %g, want 1", rec.NDCG)
	}
	if !almostEqual(rec.Recall, 1.0) {
		t.Errorf("recall = %g, want 1", rec.Recall)
	}
}

func TestEvaluate_RankerFailureScoresZero(t *testing.T) {
	runner := NewRunner(&stubRanker{err: errors.New("backend down")}, zap.NewNop())

	rec := runner.Evaluate(context.Background(), Query{
		ID: "Q1", Text: "anything", GroundTruth: []string{"A"},
	})
	if rec.Err == nil {
		t.Fatal("expected error recorded")
	}
	if rec.NDCG != 0 || rec.Recall != 0 || rec.NumPredicted != 0 {
		t.Errorf("failed query must score zero, got ndcg=%g recall=%g", rec.NDCG, rec.Recall)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	calls := 0
	ranker := rankerFunc(func(_ context.Context, query string) ([]string, error) {
		calls++
		if query == "bad" {
			return nil, errors.New("boom")
		}
		return []string{"A"}, nil
	})
	runner := NewRunner(ranker, zap.NewNop())

	records := runner.Run(context.Background(), []Query{
		{ID: "Q1", Text: "good", GroundTruth: []string{"A"}},
		{ID: "Q2", Text: "bad", GroundTruth: []string{"A"}},
		{ID: "Q3", Text: "good", GroundTruth: []string{"A"}},
	})

	if len(records) != 3 || calls != 3 {
		t.Fatalf("expected all 3 queries attempted, got %d records / %d calls", len(records), calls)
	}
	if records[1].Err == nil {
		t.Error("expected Q2 to record its failure")
	}
	if records[0].NDCG != 1.0 || records[2].NDCG != 1.0 {
		t.Error("surrounding queries must be unaffected by the failure")
	}
}

type rankerFunc func(ctx context.Context, query string) ([]string, error)

func (f rankerFunc) Rank(ctx context.Context, query string) ([]string, error) {
	return f(ctx, query)
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{QueryID: "Q1", NDCG: 1.0, Recall: 1.0, NumPredicted: 5},
		{QueryID: "Q2", NDCG: 0.5, Recall: 0.5, NumPredicted: 5},
		{QueryID: "Q3", NDCG: 0.0, Recall: 0.0, NumPredicted: 0},
		{QueryID: "Q4", NDCG: 0.0, Recall: 0.0, Err: errors.New("boom")},
	}

	s := Summarize(records, 2)

	if s.Queries != 4 || s.Failed != 1 {
		t.Errorf("queries/failed = %d/%d, want 4/1", s.Queries, s.Failed)
	}
	if !almostEqual(s.NDCG.Mean, 0.375) {
		t.Errorf("mean ndcg = %g, want 0.375", s.NDCG.Mean)
	}
	if s.NDCG.Min != 0.0 || s.NDCG.Max != 1.0 {
		t.Errorf("min/max = %g/%g, want 0/1", s.NDCG.Min, s.NDCG.Max)
	}
	if len(s.Best) != 2 || s.Best[0].QueryID != "Q1" {
		t.Errorf("best = %+v, want Q1 first", s.Best)
	}
	if len(s.Worst) != 2 {
		t.Fatalf("expected 2 worst records, got %d", len(s.Worst))
	}
	// Q4 failed (zero score); Q3 succeeded with zero results.
	if len(s.ZeroResult) != 1 || s.ZeroResult[0] != "Q3" {
		t.Errorf("zero-result = %v, want [Q3]", s.ZeroResult)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 5)
	if s.Queries != 0 || len(s.Best) != 0 {
		t.Errorf("empty batch must produce an empty summary, got %+v", s)
	}
}

func TestLoadQueries(t *testing.T) {
	csvData := `query_id,query_text,relevant_products
Q1,vegan cold brew,CBR_001;CBR_002
Q2,hot tea,"['TEA_001', 'TEA_002']"
Q3,anything,
`
	qs, err := LoadQueries(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(qs))
	}
	if !reflect.DeepEqual(qs[0].GroundTruth, []string{"CBR_001", "CBR_002"}) {
		t.Errorf("Q1 ground truth = %v", qs[0].GroundTruth)
	}
	if !reflect.DeepEqual(qs[1].GroundTruth, []string{"TEA_001", "TEA_002"}) {
		t.Errorf("Q2 ground truth = %v", qs[1].GroundTruth)
	}
	if len(qs[2].GroundTruth) != 0 {
		t.Errorf("Q3 ground truth must be empty, got %v", qs[2].GroundTruth)
	}
}

func TestLoadQueries_NoRelevantColumn(t *testing.T) {
	csvData := "query_id,query_text\nQ1,iced latte\n"
	qs, err := LoadQueries(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || len(qs[0].GroundTruth) != 0 {
		t.Errorf("test queries without labels must load, got %+v", qs)
	}
}

func TestLoadQueries_Errors(t *testing.T) {
	if _, err := LoadQueries(strings.NewReader("query_text\nfoo\n")); err == nil {
		t.Error("expected missing query_id column error")
	}
	if _, err := LoadQueries(strings.NewReader("query_id,query_text\nQ1,a\nQ1,b\n")); err == nil {
		t.Error("expected duplicate query id error")
	}
}
