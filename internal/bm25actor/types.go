// Package bm25actor owns RELE's in-memory sparse index: a single
// goroutine holding a classic BM25 scorer, driven by a command channel so
// every caller observes FIFO ordering regardless of which goroutine sent
// the command.
package bm25actor

import "github.com/ploke-dev/rele/internal/store"

// IndexDoc is one document submitted to IndexBatch: a node's combined
// symbol and body text, tokenized and scored as a single field.
type IndexDoc struct {
	ID         store.NodeId
	SymbolText string
	BodyText   string
	DocLen     int
}

// StatusKind enumerates BM25Actor's lifecycle states.
type StatusKind string

const (
	StatusUninitialized StatusKind = "uninitialized"
	StatusBuilding      StatusKind = "building"
	StatusReady         StatusKind = "ready"
	StatusEmpty         StatusKind = "empty"
	StatusError         StatusKind = "error"
)

// Status is BM25Actor's current state, as reported to Status().
type Status struct {
	Kind  StatusKind
	Docs  int
	Error string
}

// SearchHit is one ranked result from Search, ordered by descending score.
type SearchHit struct {
	ID    store.NodeId
	Score float64
}
