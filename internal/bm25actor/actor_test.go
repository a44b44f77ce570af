package bm25actor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/store"
)

func testNodeId(b byte) store.NodeId {
	var id store.NodeId
	id[0] = b
	return id
}

func TestIndexBatch_FinalizeSeed_Search(t *testing.T) {
	a := StartDefault()
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.IndexBatch(ctx, []IndexDoc{
		{ID: testNodeId(1), SymbolText: "getUserById", BodyText: "fetch a user record by id"},
		{ID: testNodeId(2), SymbolText: "deleteUser", BodyText: "remove a user record"},
	}))
	require.NoError(t, a.FinalizeSeed(ctx))

	status, err := a.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status.Kind)
	require.Equal(t, 2, status.Docs)

	hits, err := a.Search(ctx, "getUserById", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, testNodeId(1), hits[0].ID)
}

func TestSearch_BeforeIndexingIsEmpty(t *testing.T) {
	a := StartDefault()
	defer a.Close()
	ctx := context.Background()

	status, err := a.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusUninitialized, status.Kind)

	hits, err := a.Search(ctx, "anything", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRemove_DropsDocFromResults(t *testing.T) {
	a := StartDefault()
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.IndexBatch(ctx, []IndexDoc{
		{ID: testNodeId(1), SymbolText: "parseConfig", BodyText: "parse configuration file"},
	}))
	require.NoError(t, a.FinalizeSeed(ctx))

	require.NoError(t, a.Remove(ctx, []store.NodeId{testNodeId(1)}))

	status, err := a.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusEmpty, status.Kind)
}

type fakeSource struct {
	docs []store.SparseDoc
}

func (f *fakeSource) AllSparseDocs(ctx context.Context) ([]store.SparseDoc, error) {
	return f.docs, nil
}

func TestRebuild_RescansSource(t *testing.T) {
	src := &fakeSource{docs: []store.SparseDoc{
		{ID: testNodeId(3), SymbolText: "computeHash", BodyText: "compute a content hash"},
	}}
	a, err := StartRebuilt(context.Background(), WithSource(src))
	require.NoError(t, err)
	defer a.Close()

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusReady, status.Kind)
	require.Equal(t, 1, status.Docs)
}

func TestRebuild_WithNoSourceReturnsError(t *testing.T) {
	a := StartDefault()
	defer a.Close()

	err := a.Rebuild(context.Background())
	require.Error(t, err)

	status, _ := a.Status(context.Background())
	require.Equal(t, StatusError, status.Kind)
}

// TestSaveLoad_RoundTrip exercises Save writing the sidecar's
// {version, docs} marker and Load consuming it only as a staleness check:
// the actual documents come back via a rebuild against the configured
// source, not by deserializing the sidecar.
func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bm25.json")
	ctx := context.Background()

	src := &fakeSource{docs: []store.SparseDoc{
		{ID: testNodeId(9), SymbolText: "renderTemplate", BodyText: "render an html template"},
	}}

	a := StartDefault(WithSource(src))
	require.NoError(t, a.Rebuild(ctx))
	require.NoError(t, a.Save(ctx, path))
	a.Close()

	b := StartDefault(WithSource(src))
	defer b.Close()
	require.NoError(t, b.Load(ctx, path))

	status, err := b.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusReady, status.Kind)
	require.Equal(t, 1, status.Docs)

	hits, err := b.Search(ctx, "renderTemplate", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, testNodeId(9), hits[0].ID)
}

// TestLoad_WithNoSourceReturnsError confirms Load does not silently hydrate
// from the sidecar when no source is configured: the rebuild it always
// performs fails the same way Rebuild does on its own.
func TestLoad_WithNoSourceReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bm25.json")

	src := &fakeSource{docs: []store.SparseDoc{
		{ID: testNodeId(9), SymbolText: "renderTemplate", BodyText: "render an html template"},
	}}
	seed := StartDefault(WithSource(src))
	require.NoError(t, seed.Rebuild(context.Background()))
	require.NoError(t, seed.Save(context.Background(), path))
	seed.Close()

	b := StartDefault()
	defer b.Close()

	err := b.Load(context.Background(), path)
	require.Error(t, err)

	status, _ := b.Status(context.Background())
	require.Equal(t, StatusError, status.Kind)
}

func TestLoad_FallsBackToRebuildWhenSidecarMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")

	src := &fakeSource{docs: []store.SparseDoc{
		{ID: testNodeId(4), SymbolText: "validateInput", BodyText: "validate user input"},
	}}
	a := StartDefault(WithSource(src))
	defer a.Close()

	require.NoError(t, a.Load(context.Background(), path))

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusReady, status.Kind)
}

func TestClose_RejectsFurtherCommands(t *testing.T) {
	a := StartDefault()
	a.Close()

	err := a.IndexBatch(context.Background(), []IndexDoc{{ID: testNodeId(1)}})
	require.Error(t, err)
}
