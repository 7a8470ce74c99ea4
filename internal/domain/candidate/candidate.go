// Package candidate holds the scored retrieval hit that flows through
// the ranking pipeline.
package candidate

import "github.com/kailas-cloud/siprank/internal/domain/product"

// Candidate is a catalog product plus its retrieval score. The score is
// mutable within a single pipeline invocation only: the boost stage
// adjusts it exactly once, then the final sort freezes the ordering.
type Candidate struct {
	product product.Product
	score   float64
	boosted bool
}

// New creates a candidate from a retrieved product and its similarity score.
func New(p product.Product, score float64) Candidate {
	return Candidate{product: p, score: score}
}

// ID returns the product identifier.
func (c *Candidate) ID() string { return c.product.ID }

// Product returns the underlying catalog product.
func (c *Candidate) Product() *product.Product { return &c.product }

// Score returns the current (possibly boosted) score.
func (c *Candidate) Score() float64 { return c.score }

// Boosted reports whether the constraint-satisfaction boost was applied.
func (c *Candidate) Boosted() bool { return c.boosted }

// Boost multiplies the score by factor. Applied at most once per
// invocation; repeat calls are no-ops.
func (c *Candidate) Boost(factor float64) {
	if c.boosted {
		return
	}
	c.score *= factor
	c.boosted = true
}
