package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestEnsureSchema_RejectsForeignTable(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	_, err = s.db.ExecContext(ctx, `CREATE TABLE module (id BLOB PRIMARY KEY, unrelated_column TEXT)`)
	require.NoError(t, err)

	err = s.EnsureSchema(ctx)
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "module", schemaErr.Relation)
}

func TestPutGetDeleteNode(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id := NewNodeId(NodeIdInputs{
		Namespace: "testcrate",
		FilePath:  "src/lib.rs",
		ItemName:  "compute_total",
		ItemKind:  KindFunction,
	})

	node := PrimaryNode{
		ID:           id,
		Kind:         KindFunction,
		Name:         "compute_total",
		FilePath:     "src/lib.rs",
		ModulePath:   []string{"crate", "billing"},
		Span:         Span{Start: 10, End: 120},
		TrackingHash: NewTrackingHash("testcrate", []string{"fn", "compute_total"}),
		SymbolText:   "compute_total",
		BodyText:     "fn computeTotal(items)",
		CreatedAt:    time.Now(),
	}

	require.NoError(t, s.PutNodes(ctx, KindFunction, []PrimaryNode{node}))

	row, err := s.GetNode(ctx, KindFunction, id)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "compute_total", row.Name)
	require.Equal(t, []string{"crate", "billing"}, row.ModulePath)

	results, err := s.SearchFTS(ctx, "symbols", "compute_total", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].DocID)

	require.NoError(t, s.DeleteNodes(ctx, KindFunction, []NodeId{id}))

	row, err = s.GetNode(ctx, KindFunction, id)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestSearchFTS_UnknownRelation(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SearchFTS(context.Background(), "bogus", "x", 5)
	require.Error(t, err)
}

func TestDenseIndexFor_MissingReturnsIndexMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.DenseIndexFor(KindFunction, EmbeddingSet{ProviderSlug: "openai", ModelID: "text-embed", Dims: 8})
	require.Error(t, err)
	var missing *IndexMissing
	require.ErrorAs(t, err, &missing)
}

func TestCreateOrReplaceIndex_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	set := EmbeddingSet{ProviderSlug: "openai", ModelID: "text-embed", Dims: 4}
	require.NoError(t, s.CreateOrReplaceIndex(KindFunction, set, DefaultVectorStoreConfig(4)))

	idx, err := s.DenseIndexFor(KindFunction, set)
	require.NoError(t, err)
	require.NotNil(t, idx)
	require.Equal(t, 0, idx.Count())
}
