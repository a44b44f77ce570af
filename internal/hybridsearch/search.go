package hybridsearch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ploke-dev/rele/internal/bm25actor"
	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/embed"
	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/store"
)

// HybridSearch fuses one (NodeKind, EmbeddingSet) dense index with the
// shared BM25Actor's sparse index. One instance targets one active
// embedding set; switching sets means constructing a new instance, which
// matches the Store's CreateOrReplaceIndex/DenseIndexFor granularity.
type HybridSearch struct {
	store    *store.Store
	kind     store.NodeKind
	set      store.EmbeddingSet
	bm25     *bm25actor.BM25Actor
	embedder embed.Embedder
	cfg      config.SearchConfig
}

// New builds a HybridSearch over a single (kind, set) dense index, sharing
// the process-wide BM25Actor.
func New(st *store.Store, kind store.NodeKind, set store.EmbeddingSet, bm25 *bm25actor.BM25Actor, embedder embed.Embedder, cfg config.SearchConfig) *HybridSearch {
	return &HybridSearch{store: st, kind: kind, set: set, bm25: bm25, embedder: embedder, cfg: cfg}
}

// Search fuses BM25 and dense results for query, honoring mode's
// readiness policy for the sparse side. Weights default to equal; pass a
// zero Weights to use the default.
func (h *HybridSearch) Search(ctx context.Context, query string, topK int, mode SearchMode, weights Weights) ([]Hit, error) {
	switch mode {
	case Strict:
		status, err := h.bm25.Status(ctx)
		if err != nil {
			return nil, err
		}
		if status.Kind != bm25actor.StatusReady {
			return nil, releerr.IndexError(releerr.CodeBM25NotReady, "bm25 index is not ready in strict mode", nil)
		}
		return h.fanOut(ctx, query, topK, weights, true)

	default: // Lenient
		ready, err := h.awaitBM25Ready(ctx)
		if err != nil {
			return nil, err
		}
		return h.fanOut(ctx, query, topK, weights, ready)
	}
}

// awaitBM25Ready polls bm25 status with the configured fixed backoff
// schedule, returning whether the index became usable (Ready or Empty —
// Empty is a legitimate "no documents yet" terminal state, not a failure)
// within the allotted attempts.
func (h *HybridSearch) awaitBM25Ready(ctx context.Context) (bool, error) {
	status, err := h.bm25.Status(ctx)
	if err != nil {
		return false, err
	}
	if usable(status.Kind) {
		return true, nil
	}

	schedule := h.cfg.BM25BackoffMS
	if len(schedule) == 0 {
		schedule = []int{50, 150, 400}
	}
	for _, ms := range schedule {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		status, err = h.bm25.Status(ctx)
		if err != nil {
			return false, err
		}
		if usable(status.Kind) {
			return true, nil
		}
	}
	return false, nil
}

func usable(kind bm25actor.StatusKind) bool {
	return kind == bm25actor.StatusReady || kind == bm25actor.StatusEmpty
}

// fanOut runs BM25 and dense search concurrently. Each goroutine captures
// its own error into a local variable rather than returning it from
// g.Go, so one side's failure never cancels or fails the other — the
// group is used purely for its WaitGroup-equivalent join, not for
// propagating the first error.
func (h *HybridSearch) fanOut(ctx context.Context, query string, topK int, weights Weights, bm25Usable bool) ([]Hit, error) {
	var (
		bm25Hits  rankedList
		bm25Err   error
		denseHits rankedList
		denseErr  error
	)

	g, gctx := errgroup.WithContext(ctx)

	if bm25Usable {
		g.Go(func() error {
			hits, err := h.bm25.Search(gctx, query, topK)
			if err != nil {
				bm25Err = err
				return nil
			}
			for _, hit := range hits {
				bm25Hits = append(bm25Hits, hit.ID)
			}
			return nil
		})
	}

	g.Go(func() error {
		hits, err := h.denseSearch(gctx, query, topK)
		if err != nil {
			denseErr = err
			return nil
		}
		for _, hit := range hits {
			denseHits = append(denseHits, hit.ID)
		}
		return nil
	})

	_ = g.Wait()

	if denseErr != nil && (!bm25Usable || bm25Err != nil) {
		return nil, releerr.IndexError(releerr.CodeEmbedFailed, "dense search failed and bm25 unavailable", denseErr)
	}

	k := h.cfg.RRFConstant
	hits := fuse(bm25Hits, denseHits, weights, k)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (h *HybridSearch) denseSearch(ctx context.Context, query string, topK int) ([]*store.VectorResult, error) {
	vec, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, releerr.IndexError(releerr.CodeEmbedFailed, "embed query", err)
	}
	idx, err := h.store.DenseIndexFor(h.kind, h.set)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, vec, topK)
}

// RebuildBM25 forwards to the BM25Actor with a fixed client-side timeout.
func (h *HybridSearch) RebuildBM25(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2000*time.Millisecond)
	defer cancel()
	return h.bm25.Rebuild(ctx)
}

// BM25Status forwards to the BM25Actor with a fixed client-side timeout.
func (h *HybridSearch) BM25Status(ctx context.Context) (bm25actor.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 2000*time.Millisecond)
	defer cancel()
	return h.bm25.Status(ctx)
}

// BM25Save forwards to the BM25Actor with a fixed client-side timeout.
func (h *HybridSearch) BM25Save(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 2000*time.Millisecond)
	defer cancel()
	return h.bm25.Save(ctx, path)
}

// BM25Load forwards to the BM25Actor with a fixed client-side timeout.
func (h *HybridSearch) BM25Load(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 2000*time.Millisecond)
	defer cancel()
	return h.bm25.Load(ctx, path)
}
