package mcp

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ploke-dev/rele/internal/store"
)

// GetFileMetadataInput is the get_file_metadata tool's argument schema.
type GetFileMetadataInput struct {
	FilePath string `json:"file_path" jsonschema:"absolute path of the file to stat"`
}

// GetFileMetadataOutput mirrors get_file_metadata's contract exactly.
type GetFileMetadataOutput struct {
	OK           bool   `json:"ok"`
	Exists       bool   `json:"exists"`
	FilePath     string `json:"file_path"`
	ByteLen      int    `json:"byte_len"`
	ModifiedMS   int64  `json:"modified_ms,omitempty"`
	TrackingHash string `json:"tracking_hash,omitempty"`
}

// RequestCodeContextInput is the request_code_context tool's argument schema.
type RequestCodeContextInput struct {
	TokenBudget int    `json:"token_budget" jsonschema:"maximum approximate token count across returned snippets"`
	Hint        string `json:"hint" jsonschema:"free-text description of the code context being sought"`
}

// CodeSnippet is one ranked blob returned by request_code_context.
type CodeSnippet struct {
	FilePath   string  `json:"file_path"`
	NodeKind   string  `json:"node_kind"`
	Name       string  `json:"name"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	TokenCount int     `json:"token_count"`
}

// RequestCodeContextOutput carries the ranked, budget-truncated snippet list.
type RequestCodeContextOutput struct {
	OK        bool          `json:"ok"`
	Snippets  []CodeSnippet `json:"snippets"`
	UsedTokens int          `json:"used_tokens"`
	Truncated bool          `json:"truncated"`
}

// CanonicalEditInput is one Canonical-shaped entry of apply_code_edit's
// edits array, named after the canonical-path field the original tool
// accepts ("crate::module::Item").
type CanonicalEditInput struct {
	File     string `json:"file"`
	Canon    string `json:"canon"`
	NodeType string `json:"node_type"`
	Code     string `json:"code"`
}

// SpliceEditInput is one Splice-shaped entry of apply_code_edit's edits
// array.
type SpliceEditInput struct {
	FilePath         string `json:"file_path"`
	ExpectedFileHash string `json:"expected_file_hash"`
	StartByte        int    `json:"start_byte"`
	EndByte          int    `json:"end_byte"`
	Replacement      string `json:"replacement"`
}

// EditInput is one entry of apply_code_edit's edits array; exactly one of
// Canonical or Splice is set.
type EditInput struct {
	Canonical *CanonicalEditInput `json:"canonical,omitempty"`
	Splice    *SpliceEditInput    `json:"splice,omitempty"`
}

// ApplyCodeEditInput is the apply_code_edit tool's argument schema.
type ApplyCodeEditInput struct {
	Confidence *float32    `json:"confidence,omitempty"`
	Namespace  string      `json:"namespace,omitempty"`
	Edits      []EditInput `json:"edits"`
}

// ApplyCodeEditOutput mirrors apply_code_edit's contract exactly.
type ApplyCodeEditOutput struct {
	OK            bool     `json:"ok"`
	Staged        bool     `json:"staged"`
	Applied       bool     `json:"applied"`
	Files         []string `json:"files"`
	PreviewMode   string   `json:"preview_mode"`
	AutoConfirmed bool     `json:"auto_confirmed"`
}

// ListDirInput is the list_dir tool's argument schema.
type ListDirInput struct {
	Dir           string `json:"dir"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
	Sort          string `json:"sort,omitempty" jsonschema:"name, mtime, size, or none (default name)"`
	MaxEntries    int    `json:"max_entries,omitempty"`
}

// DirEntry is one entry of list_dir's response.
type DirEntry struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	ModifiedMS int64  `json:"modified_ms,omitempty"`
}

// ListDirOutput mirrors list_dir's contract exactly.
type ListDirOutput struct {
	OK        bool       `json:"ok"`
	Dir       string     `json:"dir"`
	Exists    bool       `json:"exists"`
	Truncated bool       `json:"truncated"`
	Entries   []DirEntry `json:"entries"`
}

// CodeItemEdgesInput is the code_item_edges tool's argument schema.
type CodeItemEdgesInput struct {
	ItemName   string   `json:"item_name"`
	FilePath   string   `json:"file_path"`
	NodeKind   string   `json:"node_kind" jsonschema:"function|struct|enum|trait|impl|module|type_alias|union|const|static|macro|import"`
	ModulePath []string `json:"module_path"`
}

// NodeInfo is code_item_edges's resolved-node summary.
type NodeInfo struct {
	Name       string   `json:"name"`
	FilePath   string   `json:"file_path"`
	ModulePath []string `json:"module_path"`
	SpanStart  int      `json:"span_start"`
	SpanEnd    int      `json:"span_end"`
}

// EdgeInfo is one outgoing edge of code_item_edges's response.
type EdgeInfo struct {
	Kind           string   `json:"kind"`
	TargetName     string   `json:"target_name"`
	TargetModule   []string `json:"target_module"`
	TargetFilePath string   `json:"target_file_path"`
}

// CodeItemEdgesOutput mirrors code_item_edges's contract exactly.
type CodeItemEdgesOutput struct {
	NodeInfo *NodeInfo  `json:"node_info"`
	EdgeInfo []EdgeInfo `json:"edge_info"`
}

// splitCanon splits a "crate::module::Item" canonical path into its module
// path and trailing item name, matching the original tool's single-string
// canon field.
func splitCanon(canon string) (modulePath []string, itemName string) {
	parts := strings.Split(canon, "::")
	if len(parts) == 0 {
		return nil, ""
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func parseTrackingHash(s string) (store.TrackingHash, error) {
	var h store.TrackingHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return h, fmt.Errorf("invalid tracking hash %q", s)
	}
	copy(h[:], b)
	return h, nil
}

// clampLimit ensures limit is within bounds, defaulting non-positive values.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// approxTokenCount estimates token count as ceil(chars / 4), the same
// deterministic heuristic used to budget LLM request messages.
func approxTokenCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return (n + 3) / 4
}
