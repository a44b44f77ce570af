package editengine

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/eventbus"
	"github.com/ploke-dev/rele/internal/ioactor"
	"github.com/ploke-dev/rele/internal/resolver"
	"github.com/ploke-dev/rele/internal/store"
	"github.com/ploke-dev/rele/internal/testsupport"
)

const widgetSrc = testsupport.WidgetSrc

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	filePath := testsupport.WriteWidgetFile(t, dir)

	st := testsupport.NewStore(t)
	testsupport.SeedWidgetFixture(t, st, filePath)

	res := resolver.New(st)
	io := ioactor.New()
	bus := eventbus.New()
	cfg := config.EditingConfig{PreviewMode: "unified_diff"}
	return New(res, io, bus, cfg), filePath
}

func stageReplaceBody(t *testing.T, eng *Engine, filePath, newBody string) (uuid.UUID, error) {
	t.Helper()
	return eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{{
			Kind: EditCanonical,
			Canonical: &CanonicalEdit{
				FilePath:   filePath,
				ModulePath: []string{"crate", "widgets"},
				ItemName:   "make_widget",
				NodeKind:   store.KindFunction,
				Code:       newBody,
			},
		}},
	})
}

func TestStage_ResolvesSpanAndHashesCurrentFile(t *testing.T) {
	eng, filePath := newTestEngine(t)

	_, err := stageReplaceBody(t, eng, filePath, "new_body()")
	require.NoError(t, err)
}

func TestStage_UnknownItemFails(t *testing.T) {
	eng, filePath := newTestEngine(t)

	_, err := eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{{
			Kind: EditCanonical,
			Canonical: &CanonicalEdit{
				FilePath:   filePath,
				ModulePath: []string{"crate", "widgets"},
				ItemName:   "does_not_exist",
				NodeKind:   store.KindFunction,
				Code:       "x",
			},
		}},
	})
	require.Error(t, err)
}

func TestPreview_ContainsDiffAndCodeBlocks(t *testing.T) {
	eng, filePath := newTestEngine(t)

	edits, err := eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{{
			Kind: EditCanonical,
			Canonical: &CanonicalEdit{
				FilePath: filePath, ModulePath: []string{"crate", "widgets"},
				ItemName: "make_widget", NodeKind: store.KindFunction, Code: "new_body()",
			},
		}},
	})
	require.NoError(t, err)

	preview, err := eng.Preview(context.Background(), edits)
	require.NoError(t, err)
	require.Contains(t, preview.DiffText, "-    old_body()")
	require.Contains(t, preview.DiffText, "+new_body()")
	require.Len(t, preview.CodeBlocks, 1)
	require.Contains(t, preview.CodeBlocks[0].Before, "old_body()")
	require.Contains(t, preview.CodeBlocks[0].After, "new_body()")
}

func TestApprove_AppliesAndWritesFileAtomically(t *testing.T) {
	eng, filePath := newTestEngine(t)

	requestID, err := eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{{
			Kind: EditCanonical,
			Canonical: &CanonicalEdit{
				FilePath: filePath, ModulePath: []string{"crate", "widgets"},
				ItemName: "make_widget", NodeKind: store.KindFunction, Code: "new_body()",
			},
		}},
	})
	require.NoError(t, err)

	require.NoError(t, eng.Approve(context.Background(), requestID))

	p, err := eng.Get(requestID)
	require.NoError(t, err)
	require.Equal(t, StatusApplied, p.Status)

	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	require.Contains(t, string(content), "new_body()")
	require.NotContains(t, string(content), "old_body()")
}

func TestApply_HashMismatchFailsProposalWithoutWriting(t *testing.T) {
	eng, filePath := newTestEngine(t)

	requestID, err := eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{{
			Kind: EditCanonical,
			Canonical: &CanonicalEdit{
				FilePath: filePath, ModulePath: []string{"crate", "widgets"},
				ItemName: "make_widget", NodeKind: store.KindFunction, Code: "new_body()",
			},
		}},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filePath, []byte(strings.Replace(widgetSrc, "old_body()", "mutated_concurrently()", 1)), 0o644))

	err = eng.Approve(context.Background(), requestID)
	require.Error(t, err)

	p, getErr := eng.Get(requestID)
	require.NoError(t, getErr)
	require.Equal(t, StatusFailed, p.Status)
	require.Equal(t, ReasonHashMismatch, p.FailureReason)

	content, _ := os.ReadFile(filePath)
	require.Contains(t, string(content), "mutated_concurrently()")
}

func TestDeny_TransitionsWithoutApplying(t *testing.T) {
	eng, filePath := newTestEngine(t)

	requestID, err := stageReplaceBody(t, eng, filePath, "new_body()")
	require.NoError(t, err)

	require.NoError(t, eng.Deny(requestID))

	p, err := eng.Get(requestID)
	require.NoError(t, err)
	require.Equal(t, StatusDenied, p.Status)

	content, _ := os.ReadFile(filePath)
	require.Contains(t, string(content), "old_body()")
}

func TestApply_OverlappingSplicesFail(t *testing.T) {
	eng, filePath := newTestEngine(t)

	requestID, err := eng.Stage(context.Background(), StageRequest{
		Edits: []EditRequest{
			{Kind: EditSplice, Splice: &SpliceEdit{FilePath: filePath, StartByte: 0, EndByte: 10, Replacement: "aaa",
				ExpectedFileHash: store.NewTrackingHash(filePath, []string{widgetSrc})}},
			{Kind: EditSplice, Splice: &SpliceEdit{FilePath: filePath, StartByte: 5, EndByte: 15, Replacement: "bbb",
				ExpectedFileHash: store.NewTrackingHash(filePath, []string{widgetSrc})}},
		},
	})
	require.NoError(t, err)

	err = eng.Approve(context.Background(), requestID)
	require.Error(t, err)

	p, getErr := eng.Get(requestID)
	require.NoError(t, getErr)
	require.Equal(t, StatusFailed, p.Status)
	require.Equal(t, ReasonOverlappingSplices, p.FailureReason)
}
