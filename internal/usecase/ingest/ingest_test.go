package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/db"
	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/product"
)

type mockStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	created []*db.IndexDefinition
	dropped []string

	createErr error
	hsetErr   error
}

func newMockStore() *mockStore {
	return &mockStore{hashes: make(map[string]map[string]string)}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[key] = fields
	return nil
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hsetErr != nil {
		return m.hsetErr
	}
	for _, item := range items {
		m.hashes[item.Key] = item.Fields
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[key], nil
}

func (m *mockStore) Del(_ context.Context, _ string) error              { return nil }
func (m *mockStore) Exists(_ context.Context, _ string) (bool, error)   { return false, nil }
func (m *mockStore) Scan(_ context.Context, _ string) ([]string, error) { return nil, nil }

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}
	m.created = append(m.created, def)
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) { return false, nil }

type mockBatchEmbedder struct {
	dim  int
	err  error
	mu   sync.Mutex
	seen [][]string
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.seen = append(m.seen, texts)
	m.mu.Unlock()
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: len(texts) * 10,
	}, nil
}

func testConfig() Config {
	return Config{
		IndexName: "product-idx",
		KeyPrefix: domain.KeyPrefix,
		VectorDim: 4,
		Workers:   2,
		BatchSize: 2,
	}
}

func testProducts(n int) []*product.Product {
	out := make([]*product.Product, n)
	for i := range out {
		out[i] = &product.Product{
			ID:          fmt.Sprintf("BEV_%03d", i+1),
			Name:        "Cold Brew",
			Category:    product.CategoryColdBrew,
			Temperature: product.TemperatureIced,
			Price:       3.45,
		}
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(newMockStore(), &mockBatchEmbedder{}, Config{VectorDim: 4}, zap.NewNop()); err == nil {
		t.Error("expected missing index name error")
	}
	if _, err := New(newMockStore(), &mockBatchEmbedder{}, Config{IndexName: "x"}, zap.NewNop()); err == nil {
		t.Error("expected invalid dimension error")
	}
}

func TestEnsureIndex(t *testing.T) {
	st := newMockStore()
	g, err := New(st, &mockBatchEmbedder{dim: 4}, testConfig(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := g.EnsureIndex(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.created) != 1 {
		t.Fatalf("expected 1 index created, got %d", len(st.created))
	}

	def := st.created[0]
	if def.Name != "product-idx" {
		t.Errorf("index name = %q", def.Name)
	}
	if len(def.Prefixes) != 1 || def.Prefixes[0] != domain.KeyPrefix {
		t.Errorf("prefixes = %v", def.Prefixes)
	}
	// 4 tag + 4 numeric + 1 vector
	if len(def.Fields) != 9 {
		t.Errorf("expected 9 schema fields, got %d", len(def.Fields))
	}
	var vec *db.IndexField
	for i := range def.Fields {
		if def.Fields[i].Type == db.IndexFieldVector {
			vec = &def.Fields[i]
		}
	}
	if vec == nil {
		t.Fatal("missing vector field")
	}
	if vec.VectorDim != 4 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestEnsureIndex_AlreadyExists(t *testing.T) {
	st := newMockStore()
	st.createErr = db.ErrIndexExists
	g, _ := New(st, &mockBatchEmbedder{dim: 4}, testConfig(), zap.NewNop())

	if err := g.EnsureIndex(context.Background(), false); err != nil {
		t.Fatalf("existing index must not error: %v", err)
	}
	if len(st.dropped) != 0 {
		t.Error("must not drop without recreate")
	}
}

func TestEnsureIndex_Recreate(t *testing.T) {
	st := newMockStore()
	st.createErr = db.ErrIndexExists
	g, _ := New(st, &mockBatchEmbedder{dim: 4}, testConfig(), zap.NewNop())

	if err := g.EnsureIndex(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.dropped) != 1 || st.dropped[0] != "product-idx" {
		t.Errorf("dropped = %v", st.dropped)
	}
	if len(st.created) != 1 {
		t.Errorf("expected recreate, got %d creations", len(st.created))
	}
}

func TestRun(t *testing.T) {
	st := newMockStore()
	emb := &mockBatchEmbedder{dim: 4}
	g, _ := New(st, emb, testConfig(), zap.NewNop())

	stats, err := g.Run(context.Background(), testProducts(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Indexed != 5 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 5 indexed", stats)
	}
	if stats.PromptTokens != 50 {
		t.Errorf("prompt tokens = %d, want 50", stats.PromptTokens)
	}
	// batch size 2 over 5 products
	if len(emb.seen) != 3 {
		t.Errorf("expected 3 batches, got %d", len(emb.seen))
	}

	fields, ok := st.hashes[domain.KeyPrefix+"BEV_001"]
	if !ok {
		t.Fatal("missing hash for BEV_001")
	}
	if fields["category"] != "cold_brew" {
		t.Errorf("category = %q", fields["category"])
	}
	if len(fields["vector"]) != 4*4 {
		t.Errorf("vector blob = %d bytes, want 16", len(fields["vector"]))
	}
}

func TestRun_EmbeddingFailureCountsBatch(t *testing.T) {
	st := newMockStore()
	emb := &mockBatchEmbedder{dim: 4, err: errors.New("rate limited")}
	g, _ := New(st, emb, testConfig(), zap.NewNop())

	stats, err := g.Run(context.Background(), testProducts(4))
	if err != nil {
		t.Fatalf("batch failures must not abort the run: %v", err)
	}
	if stats.Indexed != 0 || stats.Failed != 4 {
		t.Errorf("stats = %+v, want all 4 failed", stats)
	}
}

func TestRun_DimensionMismatch(t *testing.T) {
	st := newMockStore()
	emb := &mockBatchEmbedder{dim: 8} // config expects 4
	g, _ := New(st, emb, testConfig(), zap.NewNop())

	stats, err := g.Run(context.Background(), testProducts(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 2 {
		t.Errorf("stats = %+v, want 2 failed", stats)
	}
}

func TestRun_Empty(t *testing.T) {
	g, _ := New(newMockStore(), &mockBatchEmbedder{dim: 4}, testConfig(), zap.NewNop())
	if _, err := g.Run(context.Background(), nil); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("expected ErrCatalogNotLoaded, got %v", err)
	}
}
