package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/editengine"
	"github.com/ploke-dev/rele/internal/eventbus"
	"github.com/ploke-dev/rele/internal/hybridsearch"
	"github.com/ploke-dev/rele/internal/ioactor"
	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/resolver"
	"github.com/ploke-dev/rele/internal/store"
	"github.com/ploke-dev/rele/pkg/version"
)

// Server is RELE's MCP server. It bridges LLM tool calls to the Resolver,
// IoActor, EditEngine, and HybridSearch components.
type Server struct {
	mcp      *mcp.Server
	store    *store.Store
	resolver *resolver.Resolver
	io       *ioactor.IoActor
	edit     *editengine.Engine
	bus      *eventbus.Bus
	cfg      *config.Config
	logger   *slog.Logger

	// searchers is keyed by node kind so request_code_context can fan out
	// across every kind that has a ready dense+sparse index. Set after
	// construction, once HybridSearch instances exist for each indexed
	// kind, mirroring the teacher's SetIndexProgress/SetMetrics pattern of
	// wiring optional components in after NewServer.
	searchers map[store.NodeKind]*hybridsearch.HybridSearch

	mu sync.RWMutex
}

// ToolInfo describes a registered tool, for ListTools callers.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates RELE's MCP server over its core components.
func NewServer(st *store.Store, res *resolver.Resolver, io *ioactor.IoActor, edit *editengine.Engine, bus *eventbus.Bus, cfg *config.Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if res == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if io == nil {
		return nil, fmt.Errorf("ioactor is required")
	}
	if edit == nil {
		return nil, fmt.Errorf("editengine is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("eventbus is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		store:     st,
		resolver:  res,
		io:        io,
		edit:      edit,
		bus:       bus,
		cfg:       cfg,
		logger:    slog.Default(),
		searchers: make(map[store.NodeKind]*hybridsearch.HybridSearch),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "ploke-rele", Version: version.Version},
		nil,
	)
	s.registerTools()

	return s, nil
}

// SetSearcher wires a HybridSearch instance for one node kind, used by
// request_code_context. Kinds with no searcher registered are skipped.
func (s *Server) SetSearcher(kind store.NodeKind, hs *hybridsearch.HybridSearch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchers[kind] = hs
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "ploke-rele", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "get_file_metadata", Description: "Stat a file by absolute path: existence, byte length, modification time, and tracking hash."},
		{Name: "request_code_context", Description: "Fetch ranked code snippets relevant to a free-text hint, truncated to an approximate token budget."},
		{Name: "apply_code_edit", Description: "Stage and, unless auto-confirm is disabled, apply one or more canonical or byte-range edits atomically."},
		{Name: "list_dir", Description: "List a directory's entries with kind, size, and modification time."},
		{Name: "code_item_edges", Description: "Resolve a code item by canonical coordinates and list its outgoing graph edges."},
	}
}

// registerTools registers every tool with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_file_metadata",
		Description: "Stat a file by absolute path: existence, byte length, modification time, and tracking hash.",
	}, s.handleGetFileMetadata)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "request_code_context",
		Description: "Fetch ranked code snippets relevant to a free-text hint, truncated to an approximate token budget.",
	}, s.handleRequestCodeContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "apply_code_edit",
		Description: "Stage and, unless auto-confirm is disabled, apply one or more canonical or byte-range edits atomically.",
	}, s.handleApplyCodeEdit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_dir",
		Description: "List a directory's entries with kind, size, and modification time.",
	}, s.handleListDir)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "code_item_edges",
		Description: "Resolve a code item by canonical coordinates and list its outgoing graph edges.",
	}, s.handleCodeItemEdges)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) handleGetFileMetadata(ctx context.Context, _ *mcp.CallToolRequest, input GetFileMetadataInput) (
	*mcp.CallToolResult, GetFileMetadataOutput, error,
) {
	if input.FilePath == "" {
		return nil, GetFileMetadataOutput{}, NewInvalidParamsError("file_path is required")
	}

	resp, err := s.io.ReadFile(ctx, input.FilePath, ioactor.ByteRange{Whole: true}, 0, ioactor.StrategyPlain)
	if err != nil {
		return nil, GetFileMetadataOutput{}, MapError(err)
	}
	if !resp.Exists {
		return nil, GetFileMetadataOutput{OK: true, Exists: false, FilePath: input.FilePath}, nil
	}

	out := GetFileMetadataOutput{
		OK:           true,
		Exists:       true,
		FilePath:     input.FilePath,
		ByteLen:      resp.ByteLen,
		TrackingHash: store.NewTrackingHash(input.FilePath, []string{resp.Content}).String(),
	}
	if info, err := os.Stat(input.FilePath); err == nil {
		out.ModifiedMS = info.ModTime().UnixMilli()
	}
	return nil, out, nil
}

func (s *Server) handleRequestCodeContext(ctx context.Context, _ *mcp.CallToolRequest, input RequestCodeContextInput) (
	*mcp.CallToolResult, RequestCodeContextOutput, error,
) {
	if input.Hint == "" {
		return nil, RequestCodeContextOutput{}, NewInvalidParamsError("hint is required")
	}
	budget := input.TokenBudget
	if budget <= 0 {
		budget = 2000
	}

	s.mu.RLock()
	searchers := make(map[store.NodeKind]*hybridsearch.HybridSearch, len(s.searchers))
	for k, v := range s.searchers {
		searchers[k] = v
	}
	s.mu.RUnlock()

	type scored struct {
		kind store.NodeKind
		hit  hybridsearch.Hit
	}
	var all []scored
	for kind, hs := range searchers {
		hits, err := hs.Search(ctx, input.Hint, clampLimit(0, 20, 1, 100), hybridsearch.Lenient, hybridsearch.Weights{})
		if err != nil {
			continue
		}
		for _, h := range hits {
			all = append(all, scored{kind: kind, hit: h})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].hit.FusedScore > all[j].hit.FusedScore })

	out := RequestCodeContextOutput{OK: true}
	used := 0
	for _, sc := range all {
		row, err := s.store.GetNode(ctx, sc.kind, sc.hit.ID)
		if err != nil || row == nil {
			continue
		}
		resp, err := s.io.ReadFile(ctx, row.FilePath, ioactor.ByteRange{Start: row.Span.Start, End: row.Span.End}, 0, ioactor.StrategyPlain)
		if err != nil || !resp.Exists {
			continue
		}
		tokens := approxTokenCount(resp.Content)
		if used+tokens > budget && len(out.Snippets) > 0 {
			out.Truncated = true
			break
		}
		used += tokens
		out.Snippets = append(out.Snippets, CodeSnippet{
			FilePath:   row.FilePath,
			NodeKind:   string(sc.kind),
			Name:       row.Name,
			Content:    resp.Content,
			Score:      sc.hit.FusedScore,
			TokenCount: tokens,
		})
	}
	out.UsedTokens = used
	return nil, out, nil
}

func (s *Server) handleApplyCodeEdit(ctx context.Context, _ *mcp.CallToolRequest, input ApplyCodeEditInput) (
	*mcp.CallToolResult, ApplyCodeEditOutput, error,
) {
	if len(input.Edits) == 0 {
		return nil, ApplyCodeEditOutput{}, NewInvalidParamsError("edits must be non-empty")
	}

	req := editengine.StageRequest{Confidence: input.Confidence}
	for _, e := range input.Edits {
		switch {
		case e.Canonical != nil:
			modulePath, itemName := splitCanon(e.Canonical.Canon)
			req.Edits = append(req.Edits, editengine.EditRequest{
				Kind: editengine.EditCanonical,
				Canonical: &editengine.CanonicalEdit{
					FilePath:   e.Canonical.File,
					ModulePath: modulePath,
					ItemName:   itemName,
					NodeKind:   store.NodeKind(e.Canonical.NodeType),
					Code:       e.Canonical.Code,
				},
			})
		case e.Splice != nil:
			hash, err := parseTrackingHash(e.Splice.ExpectedFileHash)
			if err != nil {
				return nil, ApplyCodeEditOutput{}, NewInvalidParamsError(err.Error())
			}
			req.Edits = append(req.Edits, editengine.EditRequest{
				Kind: editengine.EditSplice,
				Splice: &editengine.SpliceEdit{
					FilePath:         e.Splice.FilePath,
					ExpectedFileHash: hash,
					StartByte:        e.Splice.StartByte,
					EndByte:          e.Splice.EndByte,
					Replacement:      e.Splice.Replacement,
				},
			})
		default:
			return nil, ApplyCodeEditOutput{}, NewInvalidParamsError("each edit requires canonical or splice")
		}
	}

	requestID, err := s.edit.Stage(ctx, req)
	if err != nil {
		return nil, ApplyCodeEditOutput{}, MapError(err)
	}

	p, err := s.edit.Get(requestID)
	if err != nil {
		return nil, ApplyCodeEditOutput{}, MapError(err)
	}

	preview, _ := s.edit.Preview(ctx, requestID)
	out := ApplyCodeEditOutput{
		OK:            true,
		Staged:        true,
		Applied:       p.Status == editengine.StatusApplied,
		Files:         p.Files,
		PreviewMode:   string(preview.Mode),
		AutoConfirmed: s.cfg.Editing.AutoConfirmEdits,
	}
	return nil, out, nil
}

func (s *Server) handleListDir(_ context.Context, _ *mcp.CallToolRequest, input ListDirInput) (
	*mcp.CallToolResult, ListDirOutput, error,
) {
	if input.Dir == "" {
		return nil, ListDirOutput{}, NewInvalidParamsError("dir is required")
	}

	entries, err := os.ReadDir(input.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ListDirOutput{OK: true, Dir: input.Dir, Exists: false}, nil
		}
		return nil, ListDirOutput{}, MapError(releerr.IOError(releerr.CodeFilePermission, "readdir failed: "+input.Dir, err))
	}

	out := ListDirOutput{OK: true, Dir: input.Dir, Exists: true}
	for _, de := range entries {
		name := de.Name()
		if !input.IncludeHidden && len(name) > 0 && name[0] == '.' {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		kind := "file"
		if de.IsDir() {
			kind = "dir"
		} else if info.Mode()&os.ModeSymlink != 0 {
			kind = "symlink"
		}
		out.Entries = append(out.Entries, DirEntry{
			Name:       name,
			Path:       filepath.Join(input.Dir, name),
			Kind:       kind,
			SizeBytes:  info.Size(),
			ModifiedMS: info.ModTime().UnixMilli(),
		})
	}

	sortDirEntries(out.Entries, input.Sort)

	max := input.MaxEntries
	if max > 0 && len(out.Entries) > max {
		out.Entries = out.Entries[:max]
		out.Truncated = true
	}
	return nil, out, nil
}

func sortDirEntries(entries []DirEntry, mode string) {
	switch mode {
	case "mtime":
		sort.Slice(entries, func(i, j int) bool { return entries[i].ModifiedMS < entries[j].ModifiedMS })
	case "size":
		sort.Slice(entries, func(i, j int) bool { return entries[i].SizeBytes < entries[j].SizeBytes })
	case "none":
		// preserve os.ReadDir's order (already name-sorted by the OS call)
	default:
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	}
}

func (s *Server) handleCodeItemEdges(ctx context.Context, _ *mcp.CallToolRequest, input CodeItemEdgesInput) (
	*mcp.CallToolResult, CodeItemEdgesOutput, error,
) {
	if input.ItemName == "" || input.FilePath == "" {
		return nil, CodeItemEdgesOutput{}, NewInvalidParamsError("item_name and file_path are required")
	}
	kind := store.NodeKind(input.NodeKind)

	rows, err := s.resolver.ResolveExact(ctx, kind, input.FilePath, input.ModulePath, input.ItemName)
	if err != nil {
		return nil, CodeItemEdgesOutput{}, MapError(err)
	}
	if len(rows) == 0 {
		return nil, CodeItemEdgesOutput{}, MapError(releerr.DomainError(releerr.CodeNodeNotFound,
			fmt.Sprintf("no node resolved for %s/%s", input.FilePath, input.ItemName), nil))
	}
	node := rows[0]

	edges, err := s.resolver.ResolveEdges(ctx, kind, input.FilePath, input.ModulePath, input.ItemName)
	if err != nil {
		return nil, CodeItemEdgesOutput{}, MapError(err)
	}

	out := CodeItemEdgesOutput{
		NodeInfo: &NodeInfo{
			Name:       node.Name,
			FilePath:   node.FilePath,
			ModulePath: node.ModulePath,
			SpanStart:  node.Span.Start,
			SpanEnd:    node.Span.End,
		},
	}
	for _, e := range edges {
		out.EdgeInfo = append(out.EdgeInfo, EdgeInfo{
			Kind:           string(e.Kind),
			TargetName:     e.TargetName,
			TargetModule:   e.TargetModule,
			TargetFilePath: e.TargetFilePath,
		})
	}
	return nil, out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}
