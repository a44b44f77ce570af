// Package hybridsearch fuses BM25Actor's sparse results with the Store's
// per-kind dense index into a single ranked list, with a readiness policy
// for callers that can't tolerate a cold sparse index.
package hybridsearch

import "github.com/ploke-dev/rele/internal/store"

// SearchMode controls how a Search call behaves when the sparse index
// isn't Ready yet.
type SearchMode int

const (
	// Lenient waits on BM25 readiness with a short backoff before falling
	// back to dense-only results.
	Lenient SearchMode = iota
	// Strict fails fast with CodeBM25NotReady rather than degrading.
	Strict
)

func (m SearchMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Hit is one fused search result.
type Hit struct {
	ID         store.NodeId
	FusedScore float64
}

// Weights scales each result list's contribution to the fused score.
// Zero values are treated as the default of 1.0.
type Weights struct {
	BM25  float64
	Dense float64
}
