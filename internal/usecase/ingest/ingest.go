// Package ingest builds the product search index: it creates the FT
// schema, embeds catalog items through a worker pool, and upserts the
// resulting hashes into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/db"
	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/product"
	"github.com/kailas-cloud/siprank/internal/repository/catalog"
)

// store is the slice of the db facade ingestion needs.
type store interface {
	db.HashStore
	db.IndexManager
}

// Config holds ingestion parameters.
type Config struct {
	IndexName       string
	KeyPrefix       string
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
	Workers         int
	BatchSize       int
}

// Stats summarizes one ingestion run.
type Stats struct {
	Indexed      int
	Failed       int
	PromptTokens int
}

// Ingestor embeds and indexes catalog products.
type Ingestor struct {
	store    store
	embedder domain.BatchEmbedder
	cfg      Config
	logger   *zap.Logger
}

// New creates an ingestor. Zero Workers and BatchSize fall back to
// sensible defaults; VectorDim must match the embedding model.
func New(st store, embedder domain.BatchEmbedder, cfg Config, logger *zap.Logger) (*Ingestor, error) {
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Ingestor{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// EnsureIndex creates the product FT index. An existing index is left
// in place unless recreate is set, in which case it is dropped and
// rebuilt (documents are kept; FT.DROPINDEX without DD preserves hashes).
func (g *Ingestor) EnsureIndex(ctx context.Context, recreate bool) error {
	def, err := db.NewIndex(g.cfg.IndexName).
		Prefix(g.cfg.KeyPrefix).
		Tag("category").
		Tag("temperature").
		Tag("contains_dairy").
		Tag("is_vegan").
		Numeric("price").
		Numeric("calories").
		Numeric("sugar_g").
		Numeric("caffeine_mg").
		VectorHNSW("vector", g.cfg.VectorDim, db.DistanceCosine, g.cfg.HNSWM, g.cfg.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	err = g.store.CreateIndex(ctx, def)
	if err == nil {
		g.logger.Info("created search index", zap.String("index", g.cfg.IndexName))
		return nil
	}
	if !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	if !recreate {
		g.logger.Info("search index already exists", zap.String("index", g.cfg.IndexName))
		return nil
	}

	if err := g.store.DropIndex(ctx, g.cfg.IndexName); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := g.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	g.logger.Info("recreated search index", zap.String("index", g.cfg.IndexName))
	return nil
}

// Run embeds every product and upserts its hash. Batches run
// concurrently on a worker pool; a failed batch is logged and counted
// but does not stop the others.
func (g *Ingestor) Run(ctx context.Context, products []*product.Product) (Stats, error) {
	if len(products) == 0 {
		return Stats{}, fmt.Errorf("no products to ingest: %w", domain.ErrCatalogNotLoaded)
	}

	pool, err := ants.NewPool(g.cfg.Workers)
	if err != nil {
		return Stats{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu    sync.Mutex
		stats Stats
		wg    sync.WaitGroup
	)

	for start := 0; start < len(products); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			indexed, tokens, err := g.ingestBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				g.logger.Error("batch ingestion failed",
					zap.String("first_id", batch[0].ID),
					zap.Int("size", len(batch)),
					zap.Error(err),
				)
				stats.Failed += len(batch)
				return
			}
			stats.Indexed += indexed
			stats.PromptTokens += tokens
		})
		if submitErr != nil {
			wg.Done()
			return stats, fmt.Errorf("submit batch: %w", submitErr)
		}
	}

	wg.Wait()

	g.logger.Info("ingestion finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("failed", stats.Failed),
		zap.Int("prompt_tokens", stats.PromptTokens),
	)
	return stats, nil
}

func (g *Ingestor) ingestBatch(ctx context.Context, batch []*product.Product) (int, int, error) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.EmbeddingText()
	}

	res, err := g.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(batch) {
		return 0, 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(res.Embeddings), len(batch))
	}

	items := make([]db.HashSetItem, len(batch))
	for i, p := range batch {
		if len(res.Embeddings[i]) != g.cfg.VectorDim {
			return 0, 0, fmt.Errorf("product %s: vector dimension %d, want %d",
				p.ID, len(res.Embeddings[i]), g.cfg.VectorDim)
		}
		fields := catalog.HashFields(p)
		fields["vector"] = db.VectorBytes(res.Embeddings[i])
		items[i] = db.HashSetItem{
			Key:    g.cfg.KeyPrefix + p.ID,
			Fields: fields,
		}
	}

	if err := g.store.HSetMulti(ctx, items); err != nil {
		return 0, 0, fmt.Errorf("upsert batch: %w", err)
	}
	return len(batch), res.PromptTokens, nil
}
