// Package retrieval runs filtered KNN search against the vector store and
// decodes hits into scored candidates.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siprank/internal/db"
	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/candidate"
	"github.com/kailas-cloud/siprank/internal/domain/search/filter"
	"github.com/kailas-cloud/siprank/internal/repository/catalog"
)

// returnFields are the hash fields fetched with every hit. The vector
// blob stays server-side.
var returnFields = []string{
	"product_id", "name", "description", "category", "temperature",
	"price", "calories", "sugar_g", "caffeine_mg",
	"contains_dairy", "is_vegan",
	"__vector_score",
}

// Repository retrieves product candidates via vector similarity search.
type Repository struct {
	store     db.Searcher
	indexName string
	logger    *zap.Logger
}

// New creates a retrieval repository over the given search index.
func New(store db.Searcher, indexName string, logger *zap.Logger) *Repository {
	return &Repository{
		store:     store,
		indexName: indexName,
		logger:    logger,
	}
}

// Retrieve returns up to k candidates nearest to the query vector that
// pass the pre-filter, ordered by descending similarity. An empty result
// is not an error; a backend failure is wrapped with ErrRetrievalFailed.
func (r *Repository) Retrieve(
	ctx context.Context, vector []float32, filters filter.Expression, k int,
) ([]candidate.Candidate, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %v: %w", err, domain.ErrRetrievalFailed)
	}

	candidates := make([]candidate.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		p, err := catalog.ProductFromFields(entry.Fields)
		if err != nil {
			// An undecodable hit means the index holds stale or corrupt
			// data for that key. Skip it rather than failing the query.
			r.logger.Warn("skipping undecodable search hit",
				zap.String("key", entry.Key),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, candidate.New(*p, entry.Score))
	}

	return candidates, nil
}
