// Package store owns the embedded database that backs RELE's structural
// graph, full-text indices, and per-node-kind dense vector indices. It is
// the persistence layer for every other RELE component.
package store

import (
	"fmt"
	"time"
)

// NodeId is an opaque 128-bit identifier derived deterministically from a
// node's (crate-namespace, file-path, module-path, item-name, item-kind,
// parent-scope-id, cfg-hash) tuple. Stable across re-parses when inputs are
// unchanged.
type NodeId [16]byte

// String renders the id as lowercase hex.
func (id NodeId) String() string { return fmt.Sprintf("%x", [16]byte(id)) }

// Less gives NodeId a total, lexicographic order — used for stable tie
// breaks in fusion and resolver result sets.
func (id NodeId) Less(other NodeId) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether the id is the unset value.
func (id NodeId) IsZero() bool { return id == NodeId{} }

// TypeId identifies a referenced type, derived the same way as NodeId. Used
// only by Resolver edges; never a direct query target.
type TypeId [16]byte

func (id TypeId) String() string { return fmt.Sprintf("%x", [16]byte(id)) }

// TrackingHash is a 128-bit content hash of a file's token stream under a
// fixed project namespace. It changes iff functional (non-comment) content
// changes.
type TrackingHash [16]byte

func (h TrackingHash) String() string { return fmt.Sprintf("%x", [16]byte(h)) }

func (h TrackingHash) IsZero() bool { return h == TrackingHash{} }

// NodeKind enumerates the primary node kinds carried by the graph.
type NodeKind string

const (
	KindFunction  NodeKind = "function"
	KindStruct    NodeKind = "struct"
	KindEnum      NodeKind = "enum"
	KindTrait     NodeKind = "trait"
	KindImpl      NodeKind = "impl"
	KindModule    NodeKind = "module"
	KindTypeAlias NodeKind = "type_alias"
	KindUnion     NodeKind = "union"
	KindConst     NodeKind = "const"
	KindStatic    NodeKind = "static"
	KindMacro     NodeKind = "macro"
	KindImport    NodeKind = "import"
)

// AllNodeKinds lists every primary node kind, in the order relations are
// created for them by EnsureSchema.
var AllNodeKinds = []NodeKind{
	KindFunction, KindStruct, KindEnum, KindTrait, KindImpl, KindModule,
	KindTypeAlias, KindUnion, KindConst, KindStatic, KindMacro, KindImport,
}

// Span is a half-open byte range [Start, End) within a file.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// PrimaryNode is one row of any of the per-kind node relations.
type PrimaryNode struct {
	ID            NodeId
	Kind          NodeKind
	Name          string
	Visibility    string
	FilePath      string
	ModulePath    []string
	Span          Span
	TrackingHash  TrackingHash // hash of the containing file at parse time
	Docstring     string
	Signature     string
	Body          string
	Attributes    []string
	CfgStrings    []string
	SymbolText    string // fed to node_fts:symbols_idx
	BodyText      string // fed to node_fts:body_idx
	HasEmbedding  bool
	ParentScopeID NodeId
	CreatedAt     time.Time
}

// ModuleKind distinguishes how a module is declared.
type ModuleKind string

const (
	ModuleFileBased   ModuleKind = "file_based"
	ModuleInline      ModuleKind = "inline"
	ModuleDeclaration ModuleKind = "declaration"
)

// Module is a row of the `module` relation.
type Module struct {
	ID         NodeId
	Path       []string // canonical path, first segment is always "crate"
	Kind       ModuleKind
	FilePath   string // only set for FileBased modules
	Visibility string
	CfgStrings []string
}

// FileMod maps a file-based module to the file and namespace that own it.
// Exactly one FileMod exists per file-based module.
type FileMod struct {
	OwnerModuleID NodeId
	FilePath      string
	Namespace     string
}

// EdgeKind enumerates the directed relationships the graph tracks.
type EdgeKind string

const (
	EdgeContains        EdgeKind = "Contains"
	EdgeStructField     EdgeKind = "StructField"
	EdgeEnumVariant     EdgeKind = "EnumVariant"
	EdgeVariantField    EdgeKind = "VariantField"
	EdgeImplementsTrait EdgeKind = "ImplementsTrait"
	EdgeUses            EdgeKind = "Uses"
	EdgeReferences      EdgeKind = "References"
)

// ContainmentKinds are the edge kinds whose transitive closure forms the
// containment forest (invariant 2 in the data model).
var ContainmentKinds = map[EdgeKind]struct{}{
	EdgeContains:     {},
	EdgeStructField:  {},
	EdgeEnumVariant:  {},
	EdgeVariantField: {},
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	SourceID NodeId
	TargetID NodeId
	Kind     EdgeKind
}

// EmbeddingSet identifies the (provider, model, shape) tuple whose vector
// relation is the current read/write target for dense search.
type EmbeddingSet struct {
	ProviderSlug string
	ModelID      string
	Dims         int
	Dtype        string
}

// Key returns a stable identifier for this embedding set, used to name its
// vector relation (`vector_embedding_<key>`).
func (s EmbeddingSet) Key() string {
	return fmt.Sprintf("%s_%s_%d", s.ProviderSlug, s.ModelID, s.Dims)
}

// SparseDoc is the unit of input accepted by the BM25 actor and the
// node_fts relations.
type SparseDoc struct {
	ID                NodeId
	SymbolText        string
	BodyText          string
	DocLen            int
	AvgdlContribution float64
}

// NodeRow is the shape the Resolver and snippet pipeline exchange: enough
// to both locate and hash-validate a byte span.
type NodeRow struct {
	ID           NodeId
	Name         string
	FilePath     string
	FileHash     TrackingHash
	TrackingHash TrackingHash
	Span         Span
	Namespace    string
	ModulePath   []string
}

// EdgeRow is an outgoing edge joined with the target's canonical path and
// file path, as returned by Resolver.ResolveEdges.
type EdgeRow struct {
	Kind           EdgeKind
	TargetID       NodeId
	TargetName     string
	TargetModule   []string
	TargetFilePath string
}

// ErrDimensionMismatch indicates a query or upsert vector's length does not
// match the active embedding set's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// SchemaError is returned by EnsureSchema when an existing relation does
// not match the schema RELE expects.
type SchemaError struct {
	Relation string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch on relation %q: %s", e.Relation, e.Reason)
}

// IndexMissing is a recoverable warning: the caller may create or replace
// the index and retry, or degrade gracefully (as HybridSearch does).
type IndexMissing struct {
	NodeKind NodeKind
	Reason   string
}

func (e *IndexMissing) Error() string {
	return fmt.Sprintf("index missing for %s: %s", e.NodeKind, e.Reason)
}
