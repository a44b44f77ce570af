// Package testsupport provides fixture helpers shared by _test.go files
// across the module: an in-memory store opened and schema'd, and a
// small seeded "widget" code graph (one module, one function, one
// contains edge) reused by resolver, editengine and mcp tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/store"
)

// WidgetSrc is the fixture source body shared by tests that stage or
// resolve edits against a single function.
const WidgetSrc = "fn make_widget() -> Widget {\n    old_body()\n}\n"

// TestID builds a NodeId with its first byte set to b, zero elsewhere.
// Distinct byte values give distinct, deterministic ids in tests.
func TestID(b byte) store.NodeId {
	var id store.NodeId
	id[0] = b
	return id
}

// NewStore opens an in-memory store with schema applied and registers
// its cleanup with t.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

// WriteWidgetFile writes WidgetSrc to dir/widgets.rs and returns its path.
func WriteWidgetFile(t *testing.T, dir string) string {
	t.Helper()
	filePath := filepath.Join(dir, "widgets.rs")
	require.NoError(t, os.WriteFile(filePath, []byte(WidgetSrc), 0o644))
	return filePath
}

// WidgetFixture is the seeded node graph SeedWidgetFixture writes.
type WidgetFixture struct {
	ModuleID   store.NodeId
	FuncID     store.NodeId
	ModulePath []string
	FilePath   string
	SpanStart  int
	SpanEnd    int
}

// SeedWidgetFixture inserts one module, one function node named
// make_widget spanning the "old_body()" call in filePath, and the
// contains edge between them.
func SeedWidgetFixture(t *testing.T, st *store.Store, filePath string) WidgetFixture {
	t.Helper()
	ctx := context.Background()

	moduleID := TestID(10)
	funcID := TestID(1)
	modulePath := []string{"crate", "widgets"}

	require.NoError(t, st.PutModules(ctx, []store.Module{
		{ID: moduleID, Path: modulePath, Kind: store.ModuleFileBased, FilePath: filePath},
	}))
	require.NoError(t, st.PutFileMods(ctx, []store.FileMod{
		{OwnerModuleID: moduleID, FilePath: filePath, Namespace: "myns"},
	}))

	start := strings.Index(WidgetSrc, "old_body()")
	end := start + len("old_body()")
	require.NoError(t, st.PutNodes(ctx, store.KindFunction, []store.PrimaryNode{
		{ID: funcID, Kind: store.KindFunction, Name: "make_widget", FilePath: filePath,
			ModulePath: modulePath, Span: store.Span{Start: start, End: end},
			TrackingHash: store.TrackingHash{1}, SymbolText: "make_widget", BodyText: "old_body()"},
	}))
	require.NoError(t, st.PutEdges(ctx, []store.Edge{
		{SourceID: moduleID, TargetID: funcID, Kind: store.EdgeContains},
	}))

	return WidgetFixture{
		ModuleID: moduleID, FuncID: funcID, ModulePath: modulePath,
		FilePath: filePath, SpanStart: start, SpanEnd: end,
	}
}
