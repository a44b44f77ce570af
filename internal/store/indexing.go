package store

import "fmt"

// Document is a unit of text indexed into node_fts or the BM25 actor's
// in-memory scorer.
type Document struct {
	ID      NodeId
	Content string
}

// BM25Result is a single sparse-search hit.
type BM25Result struct {
	DocID        NodeId
	Score        float64
	MatchedTerms []string
}

// FTSIndexStats reports size information about a full-text relation.
type FTSIndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Config configures the classic BM25 scorer used by the sparse actor
// and the tokenization shared with node_fts.
type BM25Config struct {
	// K1 is the term-frequency saturation parameter.
	K1 float64
	// B is the length-normalization parameter.
	B float64
	// StopWords filters common keywords/identifiers out of the index.
	StopWords []string
	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultBM25Config returns the spec-mandated defaults: k1=1.2, b=0.75.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords are common language keywords filtered from the
// sparse index so they don't dominate term frequency statistics.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult is a single dense-search hit, joined with enough of the
// owning node row to build a snippet request.
type VectorResult struct {
	ID       NodeId
	Distance float32
	Score    float32
	Node     *NodeRow
}

// VectorStoreConfig configures one per-kind HNSW index.
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "l2" or "cos"
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultVectorStoreConfig returns the spec-mandated defaults:
// m=32, ef_construction=200, metric=L2.
func DefaultVectorStoreConfig(dims int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dims,
		Metric:         "l2",
		M:              32,
		EfConstruction: 200,
		EfSearch:       64,
	}
}

func (c VectorStoreConfig) String() string {
	return fmt.Sprintf("dims=%d metric=%s m=%d ef_construction=%d", c.Dimensions, c.Metric, c.M, c.EfConstruction)
}
