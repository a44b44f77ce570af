// Package ioactor provides bounded-concurrency file reads that produce
// byte-exact snippets and track file-change status, shared across MCP tool
// calls and the resolver's snippet pipeline.
package ioactor

import "github.com/ploke-dev/rele/internal/store"

// SnippetReq identifies one byte span of one file to read.
type SnippetReq struct {
	FilePath         string
	StartByte        int
	EndByte          int
	ExpectedFileHash store.TrackingHash
}

// SnippetResult is the per-request outcome of GetSnippetsBatch, returned in
// input order.
type SnippetResult struct {
	Content string
	Err     error
}

// ReadStrategy selects how ReadFile interprets content before returning it.
type ReadStrategy string

const (
	// StrategyPlain returns raw file bytes, decoded as UTF-8 best-effort.
	StrategyPlain ReadStrategy = "plain"
)

// ByteRange is a half-open [Start, End) byte range. A zero-value ByteRange
// (Start == End == 0 with End unset) means "whole file" in ReadFile.
type ByteRange struct {
	Start int
	End   int
	// Whole, when true, ignores Start/End and reads the entire file.
	Whole bool
}

// ReadResponse is ReadFile's result.
type ReadResponse struct {
	Exists    bool
	ByteLen   int
	Content   string
	Truncated bool
}

// ChangeStatusKind enumerates ScanChanges's per-file verdict.
type ChangeStatusKind string

const (
	StatusUnchanged ChangeStatusKind = "unchanged"
	StatusModified  ChangeStatusKind = "modified"
	StatusMissing   ChangeStatusKind = "missing"
)

// ChangeStatus is one file's scan_changes verdict.
type ChangeStatus struct {
	FilePath string
	Status   ChangeStatusKind
	Err      error
}
