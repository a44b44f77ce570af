package hybridsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/bm25actor"
	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/embed"
	"github.com/ploke-dev/rele/internal/store"
)

func testNodeId(b byte) store.NodeId {
	var id store.NodeId
	id[0] = b
	return id
}

func newTestSet() (*store.Store, store.NodeKind, store.EmbeddingSet) {
	set := store.EmbeddingSet{ProviderSlug: "static", ModelID: "static-256", Dims: embed.StaticDimensions, Dtype: "f32"}
	kind := store.KindFunction
	st, err := store.Open("")
	if err != nil {
		panic(err)
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		panic(err)
	}
	if err := st.CreateOrReplaceIndex(kind, set, store.DefaultVectorStoreConfig(set.Dims)); err != nil {
		panic(err)
	}
	return st, kind, set
}

func seedDense(t *testing.T, st *store.Store, kind store.NodeKind, set store.EmbeddingSet, embedder embed.Embedder, id store.NodeId, text string) {
	t.Helper()
	idx, err := st.DenseIndexFor(kind, set)
	require.NoError(t, err)
	vec, err := embedder.Embed(context.Background(), text)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), []store.NodeId{id}, [][]float32{vec}))
}

func TestSearch_LenientFallsBackToDenseWhenBM25Uninitialized(t *testing.T) {
	st, kind, set := newTestSet()
	defer st.Close()
	embedder := embed.NewStaticEmbedder()

	seedDense(t, st, kind, set, embedder, testNodeId(1), "parseConfig reads a configuration file")

	bm25 := bm25actor.StartDefault()
	defer bm25.Close()

	cfg := config.SearchConfig{RRFConstant: 60, BM25BackoffMS: []int{1, 1, 1}}
	hs := New(st, kind, set, bm25, embedder, cfg)

	hits, err := hs.Search(context.Background(), "parseConfig reads a configuration file", 5, Lenient, Weights{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, testNodeId(1), hits[0].ID)
}

func TestSearch_StrictFailsWhenBM25NotReady(t *testing.T) {
	st, kind, set := newTestSet()
	defer st.Close()
	embedder := embed.NewStaticEmbedder()
	seedDense(t, st, kind, set, embedder, testNodeId(1), "deleteUser removes a record")

	bm25 := bm25actor.StartDefault()
	defer bm25.Close()

	cfg := config.SearchConfig{RRFConstant: 60, BM25BackoffMS: []int{1}}
	hs := New(st, kind, set, bm25, embedder, cfg)

	_, err := hs.Search(context.Background(), "deleteUser", 5, Strict, Weights{})
	require.Error(t, err)
}

func TestSearch_FusesBM25AndDenseWhenReady(t *testing.T) {
	st, kind, set := newTestSet()
	defer st.Close()
	embedder := embed.NewStaticEmbedder()
	seedDense(t, st, kind, set, embedder, testNodeId(1), "computeHash hashes file contents")

	bm25 := bm25actor.StartDefault()
	defer bm25.Close()
	require.NoError(t, bm25.IndexBatch(context.Background(), []bm25actor.IndexDoc{
		{ID: testNodeId(1), SymbolText: "computeHash", BodyText: "hashes file contents"},
	}))
	require.NoError(t, bm25.FinalizeSeed(context.Background()))

	cfg := config.SearchConfig{RRFConstant: 60, BM25BackoffMS: []int{1, 1, 1}}
	hs := New(st, kind, set, bm25, embedder, cfg)

	hits, err := hs.Search(context.Background(), "computeHash hashes file contents", 5, Strict, Weights{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, testNodeId(1), hits[0].ID)
}

func TestFuse_TieBreaksByNodeIdWhenScoresEqual(t *testing.T) {
	bm25 := rankedList{testNodeId(5), testNodeId(3)}
	dense := rankedList{testNodeId(3), testNodeId(5)}
	hits := fuse(bm25, dense, Weights{}, 60)
	require.Len(t, hits, 2)
	require.InDelta(t, hits[0].FusedScore, hits[1].FusedScore, 1e-9)
	require.True(t, hits[0].ID.Less(hits[1].ID))
}

func TestBM25Forwarders_RoundTrip(t *testing.T) {
	st, kind, set := newTestSet()
	defer st.Close()
	embedder := embed.NewStaticEmbedder()

	bm25 := bm25actor.StartDefault(bm25actor.WithSource(st))
	defer bm25.Close()
	cfg := config.SearchConfig{RRFConstant: 60, BM25BackoffMS: []int{1}}
	hs := New(st, kind, set, bm25, embedder, cfg)

	status, err := hs.BM25Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, bm25actor.StatusUninitialized, status.Kind)

	dir := t.TempDir()
	require.NoError(t, hs.BM25Save(context.Background(), dir+"/bm25.json"))
	require.NoError(t, hs.BM25Load(context.Background(), dir+"/bm25.json"))
}
