// sipctl is the operations CLI: catalog indexing, offline evaluation,
// and submission generation.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/config"
	"github.com/kailas-cloud/siprank/internal/db"
	dbRedis "github.com/kailas-cloud/siprank/internal/db/redis"
	"github.com/kailas-cloud/siprank/internal/domain"
	logpkg "github.com/kailas-cloud/siprank/internal/logger"
	"github.com/kailas-cloud/siprank/internal/metrics"
	"github.com/kailas-cloud/siprank/internal/repository/catalog"
	"github.com/kailas-cloud/siprank/internal/repository/embcache"
	"github.com/kailas-cloud/siprank/internal/repository/retrieval"
	openaiTransport "github.com/kailas-cloud/siprank/internal/transport/openai"
	evaluc "github.com/kailas-cloud/siprank/internal/usecase/eval"
	ingestuc "github.com/kailas-cloud/siprank/internal/usecase/ingest"
	rankuc "github.com/kailas-cloud/siprank/internal/usecase/rank"
	submituc "github.com/kailas-cloud/siprank/internal/usecase/submit"
)

func main() {
	app := &cli.App{
		Name:  "sipctl",
		Usage: "Operations tooling for the siprank recommendation service",
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Create the search index and ingest the product catalog",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "catalog",
						Aliases: []string{"c"},
						Usage:   "Path to the product catalog CSV (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Drop and rebuild the index if it already exists",
					},
				},
			},
			{
				Name:   "eval",
				Usage:  "Evaluate the pipeline against labeled training queries",
				Action: evalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "queries",
						Aliases:  []string{"q"},
						Usage:    "Path to the training queries CSV",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "sample",
						Usage: "Evaluate a random sample of N queries (0 = all)",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write per-query results to this CSV file",
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of best/worst queries to print",
						Value: 5,
					},
				},
			},
			{
				Name:   "submit",
				Usage:  "Generate the submission CSV for test queries",
				Action: submitCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "queries",
						Aliases:  []string{"q"},
						Usage:    "Path to the test queries CSV",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output CSV file",
						Value:   "submission.csv",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// bootstrap loads config, builds the logger, and connects the store.
func bootstrap() (config.Config, *zap.Logger, db.Store, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return config.Config{}, nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	return cfg, logger, store, nil
}

func indexCommand(c *cli.Context) error {
	cfg, logger, store, err := bootstrap()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	catalogPath := c.String("catalog")
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	if catalogPath == "" {
		return fmt.Errorf("catalog path is required (flag --catalog or config)")
	}

	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Loaded %d products from %s\n", cat.Len(), filepath.Clean(catalogPath))

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	ing, err := ingestuc.New(store, embedder, ingestuc.Config{
		IndexName:       cfg.Catalog.IndexName,
		KeyPrefix:       cfg.Catalog.KeyPrefix,
		VectorDim:       cfg.Embedding.Dimensions,
		HNSWM:           cfg.Catalog.HNSWM,
		HNSWEFConstruct: cfg.Catalog.HNSWEFConstruct,
		Workers:         cfg.Catalog.IngestWorkers,
		BatchSize:       cfg.Catalog.IngestBatchSize,
	}, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := ing.EnsureIndex(ctx, c.Bool("recreate")); err != nil {
		return err
	}

	stats, err := ing.Run(ctx, cat.All())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Indexed %d products (%d failed, %d prompt tokens)\n",
		stats.Indexed, stats.Failed, stats.PromptTokens)
	if stats.Failed > 0 {
		return fmt.Errorf("%d products failed to ingest", stats.Failed)
	}
	return nil
}

func evalCommand(c *cli.Context) error {
	cfg, logger, store, err := bootstrap()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	queries, err := evaluc.LoadQueriesFile(c.String("queries"))
	if err != nil {
		return err
	}
	if n := c.Int("sample"); n > 0 && n < len(queries) {
		// Deterministic sample so repeated runs compare the same slice.
		rng := rand.New(rand.NewSource(42))
		rng.Shuffle(len(queries), func(i, j int) {
			queries[i], queries[j] = queries[j], queries[i]
		})
		queries = queries[:n]
	}
	fmt.Fprintf(os.Stderr, "Evaluating %d queries\n", len(queries))

	pipeline := buildPipeline(cfg, store, logger)
	runner := evaluc.NewRunner(&idRanker{pipeline: pipeline}, logger)

	records := runner.Run(context.Background(), queries)
	summary := evaluc.Summarize(records, c.Int("top"))

	printSummary(summary)

	if out := c.String("out"); out != "" {
		f, err := os.Create(filepath.Clean(out))
		if err != nil {
			return fmt.Errorf("create results file: %w", err)
		}
		defer f.Close()
		if err := evaluc.WriteCSV(f, records); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Per-query results written to %s\n", out)
	}

	return nil
}

func submitCommand(c *cli.Context) error {
	cfg, logger, store, err := bootstrap()
	if err != nil {
		return err
	}
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	queries, err := evaluc.LoadQueriesFile(c.String("queries"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Processing %d test queries\n", len(queries))

	pipeline := buildPipeline(cfg, store, logger)
	gen := submituc.NewGenerator(&idRanker{pipeline: pipeline}, logger)

	rows := gen.Generate(context.Background(), queries)

	report, err := submituc.Validate(rows)
	if err != nil {
		return fmt.Errorf("submission validation: %w", err)
	}
	if len(report.EmptyRows) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d queries have no products: %v\n",
			len(report.EmptyRows), report.EmptyRows)
	}

	out := c.String("out")
	f, err := os.Create(filepath.Clean(out))
	if err != nil {
		return fmt.Errorf("create submission file: %w", err)
	}
	defer f.Close()
	if err := submituc.WriteCSV(f, rows); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Submission with %d rows written to %s\n", report.Rows, out)
	return nil
}

// buildPipeline assembles the full ranking stack against the live store.
func buildPipeline(cfg config.Config, store db.Store, logger *zap.Logger) *rankuc.Service {
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		baseEmbedder, store,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)

	extractor := openaiTransport.NewExtractor(&openaiTransport.ExtractorConfig{
		APIKey:  cfg.Extraction.APIKey,
		BaseURL: cfg.Extraction.BaseURL,
		Model:   cfg.Extraction.Model,
		Logger:  logger,
	})

	retriever := retrieval.New(store, cfg.Catalog.IndexName, logger)

	return rankuc.New(extractor, embedder, retriever, rankuc.Config{
		TopK:        cfg.Pipeline.TopK,
		BoostFactor: cfg.Pipeline.BoostFactor,
	}, logger)
}

// idRanker adapts the ranking service to the id-sequence surface the
// evaluator and submission generator consume.
type idRanker struct {
	pipeline *rankuc.Service
}

func (r *idRanker) Rank(ctx context.Context, query string) ([]string, error) {
	result, err := r.pipeline.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(result.Candidates))
	for i := range result.Candidates {
		ids[i] = result.Candidates[i].ID()
	}
	return ids, nil
}

func printSummary(s evaluc.Summary) {
	fmt.Printf("Queries evaluated: %d (%d failed)\n\n", s.Queries, s.Failed)

	printStats := func(name string, st evaluc.Stats) {
		fmt.Printf("%-8s mean=%.4f median=%.4f min=%.4f p25=%.4f p75=%.4f max=%.4f\n",
			name, st.Mean, st.Median, st.Min, st.P25, st.P75, st.Max)
	}
	printStats("NDCG", s.NDCG)
	printStats("NDCG@5", s.NDCGAt5)
	printStats("NDCG@10", s.NDCGAt10)
	printStats("Recall", s.Recall)

	if len(s.Best) > 0 {
		fmt.Printf("\nBest queries:\n")
		for _, rec := range s.Best {
			fmt.Printf("  %s  ndcg=%.4f  %s\n", rec.QueryID, rec.NDCG, truncate(rec.QueryText, 60))
		}
	}
	if len(s.Worst) > 0 {
		fmt.Printf("\nWorst queries:\n")
		for _, rec := range s.Worst {
			fmt.Printf("  %s  ndcg=%.4f  %s\n", rec.QueryID, rec.NDCG, truncate(rec.QueryText, 60))
		}
	}
	if len(s.ZeroResult) > 0 {
		fmt.Printf("\nZero-result queries: %v\n", s.ZeroResult)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
