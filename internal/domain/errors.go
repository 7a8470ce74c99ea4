package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals an unusable query (empty or too long).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExtractionProviderError signals a constraint-extraction provider
	// failure. The ranking pipeline recovers from it locally; it is only
	// surfaced by health checks.
	ErrExtractionProviderError = errors.New("extraction provider error")
	// ErrRetrievalFailed signals a retrieval backend failure. Unlike an
	// empty result set, this aborts the pipeline invocation.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrCatalogNotLoaded signals that the product catalog is unavailable.
	ErrCatalogNotLoaded = errors.New("catalog not loaded")
)
