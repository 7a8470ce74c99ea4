package rank

import (
	"context"
	"errors"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/candidate"
	"github.com/kailas-cloud/siprank/internal/domain/constraint"
	"github.com/kailas-cloud/siprank/internal/domain/product"
	"github.com/kailas-cloud/siprank/internal/domain/search/filter"
)

// --- mocks ---

type mockExtractor struct {
	set   constraint.Set
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, _ string) (constraint.Set, error) {
	m.calls++
	if m.err != nil {
		return constraint.Set{}, m.err
	}
	return m.set, nil
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

// scoredProduct pairs a catalog item with its simulated base similarity.
type scoredProduct struct {
	p     product.Product
	score float64
}

// mockRetriever simulates the vector store: it applies the filter
// locally and returns matches ordered by descending base score.
type mockRetriever struct {
	items   []scoredProduct
	err     error
	filters []filter.Expression // one entry per call
}

func (m *mockRetriever) Retrieve(
	_ context.Context, _ []float32, filters filter.Expression, k int,
) ([]candidate.Candidate, error) {
	m.filters = append(m.filters, filters)
	if m.err != nil {
		return nil, m.err
	}

	matched := make([]scoredProduct, 0, len(m.items))
	for _, item := range m.items {
		p := item.p
		if filters.Matches(&p) {
			matched = append(matched, item)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })
	if len(matched) > k {
		matched = matched[:k]
	}

	out := make([]candidate.Candidate, len(matched))
	for i, item := range matched {
		out[i] = candidate.New(item.p, item.score)
	}
	return out, nil
}

func newService(ext Extractor, ret Retriever) *Service {
	return New(ext, &mockEmbedder{}, ret, Config{}, zap.NewNop())
}

func strPtr[T ~string](v T) *T  { return &v }
func f64Ptr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool      { return &v }

// --- validation ---

func TestRank_EmptyQuery(t *testing.T) {
	svc := newService(&mockExtractor{}, &mockRetriever{})

	_, err := svc.Rank(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestRank_QueryTooLong(t *testing.T) {
	svc := newService(&mockExtractor{}, &mockRetriever{})

	long := make([]byte, MaxQueryLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.Rank(context.Background(), string(long))
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

// --- failure semantics ---

func TestRank_EmbeddingFailureIsFatal(t *testing.T) {
	svc := New(
		&mockExtractor{},
		&mockEmbedder{err: domain.ErrEmbeddingProviderError},
		&mockRetriever{},
		Config{},
		zap.NewNop(),
	)

	_, err := svc.Rank(context.Background(), "cold brew")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected embedding error to surface, got %v", err)
	}
}

func TestRank_RetrievalFailureIsFatal(t *testing.T) {
	svc := newService(&mockExtractor{}, &mockRetriever{err: domain.ErrRetrievalFailed})

	_, err := svc.Rank(context.Background(), "cold brew")
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected retrieval error to surface, got %v", err)
	}
}

// --- fallback mechanics ---

func TestRank_NoFallbackWhenFilterEmpty(t *testing.T) {
	ret := &mockRetriever{} // no items: always empty
	svc := newService(&mockExtractor{}, ret)

	res, err := svc.Rank(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Relaxed {
		t.Error("fallback must not trigger with an empty filter")
	}
	if len(ret.filters) != 1 {
		t.Fatalf("expected 1 retrieval, got %d", len(ret.filters))
	}
	if len(res.Candidates) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(res.Candidates))
	}
}

func TestRank_FallbackAtMostOnce(t *testing.T) {
	// Constraints present, but no catalog item matches even relaxed.
	ext := &mockExtractor{set: constraint.Set{
		Category: strPtr(product.CategoryTea),
	}}
	ret := &mockRetriever{} // always empty
	svc := newService(ext, ret)

	res, err := svc.Rank(context.Background(), "herbal tea")
	if err != nil {
		t.Fatalf("empty result after fallback must not error, got %v", err)
	}
	if !res.Relaxed {
		t.Error("expected fallback to engage")
	}
	if len(ret.filters) != 2 {
		t.Fatalf("expected exactly 2 retrievals, got %d", len(ret.filters))
	}
	if len(res.Candidates) != 0 {
		t.Errorf("expected empty result, got %d candidates", len(res.Candidates))
	}
}

func TestRank_RelaxedRetrievalFailureIsFatal(t *testing.T) {
	ext := &mockExtractor{set: constraint.Set{
		Category: strPtr(product.CategoryTea),
	}}

	calls := 0
	ret := &failOnSecondRetriever{fail: &calls}
	svc := newService(ext, ret)

	_, err := svc.Rank(context.Background(), "herbal tea")
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected retrieval error from relaxed retry, got %v", err)
	}
}

type failOnSecondRetriever struct {
	fail *int
}

func (r *failOnSecondRetriever) Retrieve(
	_ context.Context, _ []float32, _ filter.Expression, _ int,
) ([]candidate.Candidate, error) {
	*r.fail++
	if *r.fail >= 2 {
		return nil, domain.ErrRetrievalFailed
	}
	return nil, nil
}

// --- ordering ---

func TestRank_TieBreakByID(t *testing.T) {
	ret := &mockRetriever{items: []scoredProduct{
		{p: product.Product{ID: "TEA_002", Name: "B", Category: product.CategoryTea, Temperature: product.TemperatureHot}, score: 0.8},
		{p: product.Product{ID: "TEA_001", Name: "A", Category: product.CategoryTea, Temperature: product.TemperatureHot}, score: 0.8},
	}}
	svc := newService(&mockExtractor{}, ret)

	res, err := svc.Rank(context.Background(), "tea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Candidates[0].ID() != "TEA_001" || res.Candidates[1].ID() != "TEA_002" {
		t.Errorf("equal scores must order by id ascending, got %s then %s",
			res.Candidates[0].ID(), res.Candidates[1].ID())
	}
}

// --- end-to-end scenarios ---

// A compound constraint set with exactly one fully-matching item: the
// match is boosted above its raw similarity and ranks first.
func TestRank_CompoundConstraintsSingleMatch(t *testing.T) {
	ext := &mockExtractor{set: constraint.Set{
		Category:  strPtr(product.CategoryColdBrew),
		MaxPrice:  f64Ptr(4.5),
		MaxSugar:  f64Ptr(15),
		DairyFree: boolPtr(true),
	}}

	match := product.Product{
		ID: "CBR_001", Name: "Cold Brew",
		Category: product.CategoryColdBrew, Temperature: product.TemperatureIced,
		Price: 3.45, SugarGrams: 0, CaffeineMg: 205, IsVegan: true,
	}
	ret := &mockRetriever{items: []scoredProduct{
		{p: match, score: 0.80},
		// Semantically closer but violates dairy_free; filtered out server-side.
		{p: product.Product{
			ID: "FRP_010", Name: "Mocha Frappuccino",
			Category: product.CategoryFrappuccino, Temperature: product.TemperatureBlended,
			Price: 5.25, SugarGrams: 51, ContainsDairy: true,
		}, score: 0.95},
	}}

	svc := newService(ext, ret)
	res, err := svc.Rank(context.Background(), "vegan cold brew under $4.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Relaxed {
		t.Error("fallback must not engage when the filter matches")
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(res.Candidates))
	}
	top := res.Candidates[0]
	if top.ID() != "CBR_001" {
		t.Fatalf("expected CBR_001 first, got %s", top.ID())
	}
	if !top.Boosted() {
		t.Error("expected the full match to be boosted")
	}
	if top.Score() <= 0.80 {
		t.Errorf("boosted score %g must exceed raw similarity 0.80", top.Score())
	}
	if top.Score() != 0.80*DefaultBoostFactor {
		t.Errorf("score = %g, want %g", top.Score(), 0.80*DefaultBoostFactor)
	}
}

// No item satisfies all constraints: the relaxed retry returns near
// misses, and the unrelaxed boost never fires.
func TestRank_FallbackRecoversNearMisses(t *testing.T) {
	medium := constraint.CaffeineMedium
	ext := &mockExtractor{set: constraint.Set{
		Category:      strPtr(product.CategoryTea),
		CaffeineLevel: &medium,
		MaxPrice:      f64Ptr(5.0),
		DairyFree:     boolPtr(true),
	}}

	// Satisfies tea + dairy_free + price but not the medium caffeine band.
	nearMiss := product.Product{
		ID: "TEA_020", Name: "Mint Herbal Tea",
		Category: product.CategoryTea, Temperature: product.TemperatureHot,
		Price: 2.95, CaffeineMg: 0, IsVegan: true,
	}
	ret := &mockRetriever{items: []scoredProduct{
		{p: nearMiss, score: 0.7},
		{p: product.Product{
			ID: "ESP_001", Name: "Espresso",
			Category: product.CategoryEspresso, Temperature: product.TemperatureHot,
			Price: 2.95, CaffeineMg: 75, ContainsDairy: true,
		}, score: 0.9},
	}}

	svc := newService(ext, ret)
	res, err := svc.Rank(context.Background(), "dairy free tea with some caffeine under $5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Relaxed {
		t.Fatal("expected fallback to engage")
	}
	if len(res.Candidates) == 0 {
		t.Fatal("expected non-empty result after fallback")
	}
	if res.Candidates[0].ID() != "TEA_020" {
		t.Errorf("expected TEA_020 first, got %s", res.Candidates[0].ID())
	}
	// Boost evaluates the original four constraints; the near miss
	// fails the caffeine band, so nothing is boosted.
	for i := range res.Candidates {
		if res.Candidates[i].Boosted() {
			t.Errorf("candidate %s must not be boosted", res.Candidates[i].ID())
		}
	}
}

// Extraction failure degrades to pure semantic search: same order as
// unconstrained retrieval, no boost anywhere.
func TestRank_ExtractionFailureDegrades(t *testing.T) {
	items := []scoredProduct{
		{p: product.Product{ID: "FRP_010", Name: "Mocha Frappuccino", Category: product.CategoryFrappuccino, Temperature: product.TemperatureBlended, ContainsDairy: true}, score: 0.9},
		{p: product.Product{ID: "CBR_001", Name: "Cold Brew", Category: product.CategoryColdBrew, Temperature: product.TemperatureIced, IsVegan: true}, score: 0.8},
		{p: product.Product{ID: "TEA_020", Name: "Mint Herbal Tea", Category: product.CategoryTea, Temperature: product.TemperatureHot, IsVegan: true}, score: 0.7},
	}

	ext := &mockExtractor{err: errors.New("model unavailable")}
	ret := &mockRetriever{items: items}
	svc := newService(ext, ret)

	res, err := svc.Rank(context.Background(), "something nice")
	if err != nil {
		t.Fatalf("extraction failure must not abort the pipeline, got %v", err)
	}

	if !res.Degraded {
		t.Error("expected degraded flag")
	}
	if !res.Constraints.IsEmpty() {
		t.Errorf("expected empty constraint set, got %+v", res.Constraints)
	}
	if len(ret.filters) != 1 || !ret.filters[0].IsEmpty() {
		t.Error("expected a single unconstrained retrieval")
	}

	want := []string{"FRP_010", "CBR_001", "TEA_020"}
	if len(res.Candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(res.Candidates))
	}
	for i, id := range want {
		if res.Candidates[i].ID() != id {
			t.Errorf("candidate[%d] = %s, want %s", i, res.Candidates[i].ID(), id)
		}
		if res.Candidates[i].Boosted() {
			t.Errorf("candidate %s must not be boosted in degraded mode", id)
		}
	}
}

// Out-of-vocabulary extractor output is dropped before compilation.
func TestRank_SanitizesExtractedConstraints(t *testing.T) {
	bogus := product.Category("smoothie")
	ext := &mockExtractor{set: constraint.Set{
		Category: &bogus,
		MaxPrice: f64Ptr(-3),
	}}
	ret := &mockRetriever{items: []scoredProduct{
		{p: product.Product{ID: "TEA_001", Name: "Tea", Category: product.CategoryTea, Temperature: product.TemperatureHot}, score: 0.5},
	}}
	svc := newService(ext, ret)

	res, err := svc.Rank(context.Background(), "a smoothie for -3 dollars")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Constraints.IsEmpty() {
		t.Errorf("expected sanitized set to be empty, got %+v", res.Constraints)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("expected unconstrained retrieval to return the item")
	}
}
