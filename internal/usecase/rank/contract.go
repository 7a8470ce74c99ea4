package rank

import (
	"context"

	"github.com/kailas-cloud/siprank/internal/domain"
	"github.com/kailas-cloud/siprank/internal/domain/candidate"
	"github.com/kailas-cloud/siprank/internal/domain/constraint"
	"github.com/kailas-cloud/siprank/internal/domain/search/filter"
)

// Extractor turns a natural-language query into a constraint set.
type Extractor interface {
	Extract(ctx context.Context, query string) (constraint.Set, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Retriever runs filtered KNN search and returns scored candidates.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]candidate.Candidate, error)
}
