// Package rank implements the recommendation pipeline: constraint
// extraction, filtered semantic retrieval with a one-shot relaxed
// fallback, constraint-satisfaction boosting, and the final sort.
package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/candidate"
	"github.com/kailas-cloud/siprank/internal/domain/constraint"
	"github.com/kailas-cloud/siprank/internal/metrics"
)

// DefaultTopK is the retrieval depth used when the caller does not
// configure one.
const DefaultTopK = 115

// DefaultBoostFactor is the score multiplier for candidates satisfying
// every extracted constraint.
const DefaultBoostFactor = 1.25

// MaxQueryLen bounds the accepted query text.
const MaxQueryLen = 1000

// Result is one pipeline invocation's outcome.
type Result struct {
	// Candidates is the full ranked list, best first.
	Candidates []candidate.Candidate
	// Constraints is the sanitized constraint set used for filtering
	// and boosting.
	Constraints constraint.Set
	// Relaxed reports whether the empty-result fallback engaged.
	Relaxed bool
	// Degraded reports whether extraction failed and the pipeline ran
	// unconstrained.
	Degraded bool
}

// Service runs the recommendation pipeline.
type Service struct {
	extract  Extractor
	embed    Embedder
	retrieve Retriever

	topK        int
	boostFactor float64
	logger      *zap.Logger
}

// Config holds pipeline tuning parameters.
type Config struct {
	TopK        int
	BoostFactor float64
}

// New creates a ranking service. Zero config fields fall back to defaults.
func New(extract Extractor, embed Embedder, retrieve Retriever, cfg Config, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.BoostFactor <= 0 {
		cfg.BoostFactor = DefaultBoostFactor
	}
	return &Service{
		extract:     extract,
		embed:       embed,
		retrieve:    retrieve,
		topK:        cfg.TopK,
		boostFactor: cfg.BoostFactor,
		logger:      logger,
	}
}

// Rank executes the full pipeline for one query. Extraction failure
// degrades to unconstrained search; embedding or retrieval failure
// aborts the invocation. An empty result after the fallback retry is a
// valid outcome, not an error.
func (s *Service) Rank(ctx context.Context, query string) (Result, error) {
	start := time.Now()

	res, err := s.rank(ctx, query)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PipelineRequestsTotal.WithLabelValues(status).Inc()
	metrics.PipelineDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	return res, err
}

func (s *Service) rank(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("query is empty: %w", domain.ErrInvalidQuery)
	}
	if len(query) > MaxQueryLen {
		return Result{}, fmt.Errorf("query exceeds %d bytes: %w", MaxQueryLen, domain.ErrInvalidQuery)
	}

	var result Result

	// Stage 1: extract. Failure degrades to an all-absent set.
	extractStart := time.Now()
	set, err := s.extract.Extract(ctx, query)
	metrics.PipelineDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())
	if err != nil {
		s.logger.Warn("constraint extraction failed, running unconstrained",
			zap.String("query", query),
			zap.Error(err),
		)
		metrics.ExtractionDegradedTotal.Inc()
		set = constraint.Set{}
		result.Degraded = true
	}
	set = set.Sanitized()
	result.Constraints = set

	// Stage 2: compile.
	filters := constraint.Compile(set)

	// Stage 3: retrieve.
	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("vectorize query: %w", err)
	}

	retrieveStart := time.Now()
	candidates, err := s.retrieve.Retrieve(ctx, embResult.Embedding, filters, s.topK)
	metrics.PipelineDuration.WithLabelValues("retrieve").Observe(time.Since(retrieveStart).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("retrieve candidates: %w", err)
	}

	// Stage 4: one-shot relaxed retry on empty.
	if len(candidates) == 0 && !filters.IsEmpty() {
		relaxed := constraint.Compile(set.Relaxed())

		s.logger.Info("empty result, retrying with relaxed filter",
			zap.String("query", query),
		)
		metrics.PipelineFallbacksTotal.Inc()
		result.Relaxed = true

		candidates, err = s.retrieve.Retrieve(ctx, embResult.Embedding, relaxed, s.topK)
		if err != nil {
			return Result{}, fmt.Errorf("retrieve candidates (relaxed): %w", err)
		}
	}

	// Stage 5: boost by the original, unrelaxed constraint set. An empty
	// filter would boost every candidate uniformly, which cannot change
	// the order, so it is skipped outright.
	if !filters.IsEmpty() {
		for i := range candidates {
			if filters.Matches(candidates[i].Product()) {
				candidates[i].Boost(s.boostFactor)
			}
		}
	}

	// Stage 6: final sort, score descending, id ascending on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score() != candidates[j].Score() {
			return candidates[i].Score() > candidates[j].Score()
		}
		return candidates[i].ID() < candidates[j].ID()
	})

	result.Candidates = candidates
	return result, nil
}
