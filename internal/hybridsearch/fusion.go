package hybridsearch

import (
	"sort"

	"github.com/ploke-dev/rele/internal/store"
)

// DefaultRRFConstant is the industry-standard RRF smoothing parameter,
// used when config.SearchConfig.RRFConstant is zero.
const DefaultRRFConstant = 60

// rankedList is a result list in rank order (best first), addressed by
// NodeId only — BM25Actor and the dense index return different
// concrete result types, so callers flatten to this before fusing.
type rankedList []store.NodeId

// fuse combines bm25 and dense rank lists with weighted Reciprocal Rank
// Fusion: each item at 1-based rank r in a list with weight w contributes
// w / (k + r). Ties are broken by descending fused score, then by NodeId
// lexicographic order — simpler than a multi-signal tie-break since the
// fused score here carries no separate BM25/vector components to fall
// back on.
func fuse(bm25, dense rankedList, weights Weights, k int) []Hit {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	bw, dw := weights.BM25, weights.Dense
	if bw == 0 {
		bw = 1
	}
	if dw == 0 {
		dw = 1
	}

	scores := make(map[store.NodeId]float64)
	for rank, id := range bm25 {
		scores[id] += bw / float64(k+rank+1)
	}
	for rank, id := range dense {
		scores[id] += dw / float64(k+rank+1)
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, FusedScore: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].FusedScore != hits[j].FusedScore {
			return hits[i].FusedScore > hits[j].FusedScore
		}
		return hits[i].ID.Less(hits[j].ID)
	})
	return hits
}
