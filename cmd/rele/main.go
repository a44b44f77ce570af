// Command rele is the MCP server entrypoint: it opens a project's
// store, wires the retrieval and edit components, and serves the tool
// surface over stdio.
//
// MCP protocol requires stdout to carry JSON-RPC exclusively; no
// component started here may write to stdout before Serve takes over,
// and logging is routed to a file for the same reason.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ploke-dev/rele/internal/bm25actor"
	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/editengine"
	"github.com/ploke-dev/rele/internal/embed"
	"github.com/ploke-dev/rele/internal/eventbus"
	"github.com/ploke-dev/rele/internal/hybridsearch"
	"github.com/ploke-dev/rele/internal/ioactor"
	"github.com/ploke-dev/rele/internal/mcp"
	"github.com/ploke-dev/rele/internal/relelog"
	"github.com/ploke-dev/rele/internal/resolver"
	"github.com/ploke-dev/rele/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rele exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := relelog.SetupStdioMode(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := filepath.Join(root, ".rele")
	st, err := store.Open(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	res := resolver.New(st)
	io := ioactor.New()
	bus := eventbus.New()
	edit := editengine.New(res, io, bus, cfg.Editing)

	srv, err := mcp.NewServer(st, res, io, edit, bus, cfg)
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}

	embedder, err := embed.NewDefaultEmbedder(ctx)
	if err != nil {
		slog.Warn("embedder unavailable, dense search disabled", slog.String("error", err.Error()))
	} else {
		wireSearchers(ctx, srv, st, embedder, cfg)
	}

	slog.Info("rele serving", slog.String("root", root), slog.String("transport", cfg.Server.Transport))
	return srv.Serve(ctx, cfg.Server.Transport)
}

// wireSearchers starts one BM25Actor shared across node kinds and a
// HybridSearch per (kind, embedding set) pair, attaching each to srv.
func wireSearchers(ctx context.Context, srv *mcp.Server, st *store.Store, embedder embed.Embedder, cfg *config.Config) {
	sidecarPath := filepath.Join(cfg.BM25.SidecarDir, "bm25.json")
	bm25 := bm25actor.StartDefault(bm25actor.WithSource(st))
	if err := bm25.Load(ctx, sidecarPath); err != nil {
		slog.Warn("bm25 load/rebuild failed", slog.String("error", err.Error()))
	}

	set := store.EmbeddingSet{
		ProviderSlug: string(embed.ProviderStatic),
		ModelID:      embedder.ModelName(),
		Dims:         embedder.Dimensions(),
		Dtype:        "f32",
	}

	for _, kind := range store.AllNodeKinds {
		if err := st.CreateOrReplaceIndex(kind, set, store.DefaultVectorStoreConfig(set.Dims)); err != nil {
			slog.Warn("dense index unavailable for kind", slog.String("kind", string(kind)), slog.String("error", err.Error()))
			continue
		}
		hs := hybridsearch.New(st, kind, set, bm25, embedder, cfg.Search)
		srv.SetSearcher(kind, hs)
	}
}
