package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/store"
)

func testID(b byte) store.NodeId {
	var id store.NodeId
	id[0] = b
	return id
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(context.Background()))

	moduleID := testID(10)
	funcID := testID(1)

	require.NoError(t, st.PutModules(context.Background(), []store.Module{
		{ID: moduleID, Path: []string{"crate", "widgets"}, Kind: store.ModuleFileBased, FilePath: "src/widgets.rs"},
	}))
	require.NoError(t, st.PutFileMods(context.Background(), []store.FileMod{
		{OwnerModuleID: moduleID, FilePath: "src/widgets.rs", Namespace: "myns"},
	}))
	require.NoError(t, st.PutNodes(context.Background(), store.KindFunction, []store.PrimaryNode{
		{ID: funcID, Kind: store.KindFunction, Name: "make_widget", FilePath: "src/widgets.rs",
			ModulePath: []string{"crate", "widgets"}, Span: store.Span{Start: 10, End: 40},
			TrackingHash: store.TrackingHash{1, 2, 3}, SymbolText: "make_widget", BodyText: "builds a widget"},
	}))
	require.NoError(t, st.PutEdges(context.Background(), []store.Edge{
		{SourceID: moduleID, TargetID: funcID, Kind: store.EdgeContains},
	}))

	return st
}

func TestResolveExact_FindsSingleRow(t *testing.T) {
	st := seededStore(t)
	r := New(st)

	rows, err := r.ResolveExact(context.Background(), store.KindFunction, "src/widgets.rs", []string{"crate", "widgets"}, "make_widget")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, testID(1), rows[0].ID)
	require.Equal(t, "myns", rows[0].Namespace)
	require.Equal(t, store.Span{Start: 10, End: 40}, rows[0].Span)
}

func TestResolveExact_WrongFilePathMisses(t *testing.T) {
	st := seededStore(t)
	r := New(st)

	rows, err := r.ResolveExact(context.Background(), store.KindFunction, "src/other.rs", []string{"crate", "widgets"}, "make_widget")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestResolveByCanon_IgnoresFilePath(t *testing.T) {
	st := seededStore(t)
	r := New(st)

	rows, err := r.ResolveByCanon(context.Background(), store.KindFunction, []string{"crate", "widgets"}, "make_widget")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "src/widgets.rs", rows[0].FilePath)
}

func TestResolveEdges_JoinsTargetAcrossKinds(t *testing.T) {
	st := seededStore(t)

	structID := testID(2)
	require.NoError(t, st.PutModules(context.Background(), []store.Module{
		{ID: testID(10), Path: []string{"crate", "widgets"}, Kind: store.ModuleFileBased, FilePath: "src/widgets.rs"},
	}))
	require.NoError(t, st.PutNodes(context.Background(), store.KindStruct, []store.PrimaryNode{
		{ID: structID, Kind: store.KindStruct, Name: "Widget", FilePath: "src/widgets.rs",
			ModulePath: []string{"crate", "widgets"}, Span: store.Span{Start: 0, End: 9},
			TrackingHash: store.TrackingHash{1, 2, 3}},
	}))
	require.NoError(t, st.PutEdges(context.Background(), []store.Edge{
		{SourceID: testID(1), TargetID: structID, Kind: store.EdgeUses},
	}))

	r := New(st)
	edges, err := r.ResolveEdges(context.Background(), store.KindFunction, "src/widgets.rs", []string{"crate", "widgets"}, "make_widget")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "Widget", edges[0].TargetName)
	require.Equal(t, store.EdgeUses, edges[0].Kind)
}

func TestResolveExact_MultipleRowsRaisesUniquenessViolation(t *testing.T) {
	st := seededStore(t)

	dupeID := testID(3)
	require.NoError(t, st.PutNodes(context.Background(), store.KindFunction, []store.PrimaryNode{
		{ID: dupeID, Kind: store.KindFunction, Name: "make_widget", FilePath: "src/widgets.rs",
			ModulePath: []string{"crate", "widgets"}, Span: store.Span{Start: 50, End: 80},
			TrackingHash: store.TrackingHash{4, 5, 6}},
	}))
	require.NoError(t, st.PutEdges(context.Background(), []store.Edge{
		{SourceID: testID(10), TargetID: dupeID, Kind: store.EdgeContains},
	}))

	r := New(st)
	_, err := r.ResolveExact(context.Background(), store.KindFunction, "src/widgets.rs", []string{"crate", "widgets"}, "make_widget")
	require.Error(t, err)
}
