// Package editengine stages, previews, approves, and applies LLM-proposed
// source edits with tracking-hash preconditions and atomic per-file writes.
package editengine

import (
	"github.com/google/uuid"

	"github.com/ploke-dev/rele/internal/store"
)

// Status is a Proposal's state-machine position.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusDenied   Status = "Denied"
	StatusApplied  Status = "Applied"
	StatusFailed   Status = "Failed"
)

// FailureReason names why a proposal landed in StatusFailed.
type FailureReason string

const (
	ReasonHashMismatch       FailureReason = "HashMismatch"
	ReasonOverlappingSplices FailureReason = "OverlappingSplices"
	ReasonResolveMiss        FailureReason = "ResolveMiss"
	ReasonIOError            FailureReason = "IOError"
)

// EditKind distinguishes the two edit shapes a staged request may carry.
type EditKind string

const (
	EditCanonical EditKind = "canonical"
	EditSplice    EditKind = "splice"
)

// CanonicalEdit identifies a node by its resolver coordinates and supplies
// replacement source for the whole node.
type CanonicalEdit struct {
	FilePath   string
	ModulePath []string
	ItemName   string
	NodeKind   store.NodeKind
	Code       string
}

// SpliceEdit replaces one byte range of a file, guarded by the caller's
// belief about the file's current content hash.
type SpliceEdit struct {
	FilePath         string
	ExpectedFileHash store.TrackingHash
	StartByte        int
	EndByte          int
	Replacement      string
}

// EditRequest is one entry of a stage() batch; exactly one of Canonical or
// Splice is set, selected by Kind.
type EditRequest struct {
	Kind      EditKind
	Canonical *CanonicalEdit
	Splice    *SpliceEdit
}

// StageRequest is the input to Stage: a batch of mixed Canonical/Splice
// edits plus an optional confidence score carried through to the result.
type StageRequest struct {
	Edits      []EditRequest
	Confidence *float32
}

// resolvedSplice is one byte-range replacement against one file, after
// Canonical edits have been resolved to byte spans and every edit's
// expected hash has been pinned.
type resolvedSplice struct {
	startByte        int
	endByte          int
	replacement      string
	expectedFileHash store.TrackingHash
}

// Proposal is a staged batch of edits tracked through approval and
// application.
type Proposal struct {
	RequestID     uuid.UUID
	Status        Status
	FailureReason FailureReason
	FailureDetail string
	Files         []string
	Confidence    *float32

	fileSplices map[string][]resolvedSplice
	newHashes   map[string]store.TrackingHash
}

// PreviewMode names which representation a caller (or the ambient config
// default) prefers; both are always computed, since spec requires both
// representations be available regardless of which one is requested.
type PreviewMode string

const (
	PreviewUnifiedDiff PreviewMode = "diff"
	PreviewCodeBlock   PreviewMode = "codeblock"
)

// CodeBlock is one file's before/after pair in a CodeBlocks preview.
type CodeBlock struct {
	FilePath string
	Before   string
	After    string
}

// Preview carries both representations of a proposal's pending changes;
// Mode records which one the caller (or ambient config) prefers by
// default.
type Preview struct {
	Mode       PreviewMode
	DiffText   string
	CodeBlocks []CodeBlock
}
