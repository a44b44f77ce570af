package bm25actor

import (
	"context"
	"log/slog"

	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/store"
)

// SparseDocSource supplies the documents Rebuild reconstructs the scorer
// from. *store.Store satisfies this directly.
type SparseDocSource interface {
	AllSparseDocs(ctx context.Context) ([]store.SparseDoc, error)
}

type indexBatchCmd struct{ docs []IndexDoc }
type removeCmd struct{ ids []store.NodeId }
type rebuildCmd struct{ reply chan error }
type finalizeSeedCmd struct{ reply chan error }
type searchCmd struct {
	query string
	topK  int
	reply chan searchReply
}
type statusCmd struct{ reply chan Status }
type saveCmd struct {
	path  string
	reply chan error
}
type loadCmd struct {
	path  string
	reply chan error
}
type closeCmd struct{ reply chan struct{} }

type searchReply struct {
	hits []SearchHit
	err  error
}

// BM25Actor is RELE's single-owner sparse index: one goroutine holding
// scorer state, driven by a buffered command channel so every caller sees
// FIFO ordering regardless of which goroutine issued the command —
// mirroring the request/reply channel idiom the teacher uses for its
// daemon protocol, adapted here from a socket transport to an in-process
// channel.
type BM25Actor struct {
	cmdCh  chan any
	doneCh chan struct{}
}

// Option configures BM25Actor construction.
type Option func(*actorState)

type actorState struct {
	cfg    store.BM25Config
	source SparseDocSource
	status Status
	staged []IndexDoc
	scorer *scorer
}

// WithConfig overrides the default BM25 tuning (k1=1.2, b=0.75).
func WithConfig(cfg store.BM25Config) Option {
	return func(s *actorState) { s.cfg = cfg }
}

// WithSource sets the Store used by Rebuild to rescan primary-node
// relations. Rebuild fails with CodeInternal if no source was configured.
func WithSource(source SparseDocSource) Option {
	return func(s *actorState) { s.source = source }
}

// StartDefault starts an actor with an empty index in the Uninitialized
// state, to be populated via IndexBatch/FinalizeSeed.
func StartDefault(opts ...Option) *BM25Actor {
	return start(Status{Kind: StatusUninitialized}, opts...)
}

// StartRebuilt starts an actor and immediately rebuilds its index from the
// configured source, landing in Ready or Empty depending on document
// count. Intended for warm-restart deployments.
func StartRebuilt(ctx context.Context, opts ...Option) (*BM25Actor, error) {
	a := start(Status{Kind: StatusBuilding}, opts...)
	if err := a.Rebuild(ctx); err != nil {
		return a, err
	}
	return a, nil
}

func start(initial Status, opts ...Option) *BM25Actor {
	st := &actorState{
		cfg:    store.DefaultBM25Config(),
		status: initial,
	}
	for _, opt := range opts {
		opt(st)
	}
	st.scorer = newScorer(st.cfg)

	a := &BM25Actor{
		cmdCh:  make(chan any, 64),
		doneCh: make(chan struct{}),
	}
	go a.run(st)
	return a
}

func (a *BM25Actor) run(st *actorState) {
	defer close(a.doneCh)
	for cmd := range a.cmdCh {
		switch c := cmd.(type) {
		case indexBatchCmd:
			st.staged = append(st.staged, c.docs...)
			if st.status.Kind == StatusUninitialized {
				st.status = Status{Kind: StatusBuilding}
			}

		case removeCmd:
			for _, id := range c.ids {
				st.scorer.remove(id)
			}
			st.scorer.recomputeAvgdl()
			st.status = statusFromDocCount(st.scorer.docCount())

		case rebuildCmd:
			err := a.doRebuild(st)
			c.reply <- err

		case finalizeSeedCmd:
			for _, d := range st.staged {
				st.scorer.upsert(d.ID, d.SymbolText, d.BodyText)
			}
			st.staged = nil
			st.scorer.recomputeAvgdl()
			st.status = statusFromDocCount(st.scorer.docCount())
			c.reply <- nil

		case searchCmd:
			if st.status.Kind == StatusError {
				c.reply <- searchReply{err: releerr.IndexError(releerr.CodeBM25NotReady, "bm25 index in error state: "+st.status.Error, nil)}
				continue
			}
			hits := st.scorer.search(c.query, c.topK)
			c.reply <- searchReply{hits: hits}

		case statusCmd:
			c.reply <- st.status

		case saveCmd:
			err := writeSidecar(c.path, st.scorer.docCount())
			c.reply <- err

		case loadCmd:
			err := a.doLoad(st, c.path)
			c.reply <- err

		case closeCmd:
			close(c.reply)
			return
		}
	}
}

func (a *BM25Actor) doRebuild(st *actorState) error {
	if st.source == nil {
		err := releerr.InternalError("bm25 rebuild requested with no source configured", nil)
		st.status = Status{Kind: StatusError, Error: err.Error()}
		return err
	}
	docs, err := st.source.AllSparseDocs(context.Background())
	if err != nil {
		wrapped := releerr.IndexError(releerr.CodeIndexCorrupt, "bm25 rebuild scan failed", err)
		st.status = Status{Kind: StatusError, Error: wrapped.Error()}
		return wrapped
	}

	fresh := newScorer(st.cfg)
	for _, d := range docs {
		fresh.upsert(d.ID, d.SymbolText, d.BodyText)
	}
	fresh.recomputeAvgdl()

	// Atomic swap: only replace the live scorer once the rebuild has
	// succeeded in full.
	st.scorer = fresh
	st.staged = nil
	st.status = statusFromDocCount(st.scorer.docCount())
	return nil
}

// doLoad always rebuilds the live index from the configured source. The
// sidecar at path carries no document content to hydrate from, only a
// version and a document count recorded at the last Save; doLoad reads it
// solely to log how far that snapshot had drifted before the rebuild
// replaced it.
func (a *BM25Actor) doLoad(st *actorState, path string) error {
	sf, ok, err := readSidecar(path)
	if err != nil {
		return err
	}
	if err := a.doRebuild(st); err != nil {
		return err
	}
	if ok {
		if sf.Version != TokenizerVersion || sf.Docs != st.scorer.docCount() {
			slog.Warn("bm25 sidecar stale, rebuilt from source",
				slog.String("sidecar_version", sf.Version),
				slog.Int("sidecar_docs", sf.Docs),
				slog.Int("rebuilt_docs", st.scorer.docCount()))
		}
	}
	return nil
}

func statusFromDocCount(n int) Status {
	if n == 0 {
		return Status{Kind: StatusEmpty}
	}
	return Status{Kind: StatusReady, Docs: n}
}

// IndexBatch stages a batch of documents. It has no reply; callers observe
// the effect via Status, matching the fire-and-forget contract.
func (a *BM25Actor) IndexBatch(ctx context.Context, docs []IndexDoc) error {
	return a.send(ctx, indexBatchCmd{docs: docs})
}

// Remove deletes documents from the live index immediately (no staging).
func (a *BM25Actor) Remove(ctx context.Context, ids []store.NodeId) error {
	return a.send(ctx, removeCmd{ids: ids})
}

// Rebuild rescans the configured Store's primary-node relations and
// atomically replaces the scorer: a failed rebuild leaves the prior index
// untouched except for transitioning Status to Error.
func (a *BM25Actor) Rebuild(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, rebuildCmd{reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// FinalizeSeed commits staged documents into the live scorer and
// recomputes avgdl.
func (a *BM25Actor) FinalizeSeed(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, finalizeSeedCmd{reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// Search tokenizes query and scores it against the live index, returning
// hits sorted by descending score.
func (a *BM25Actor) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	reply := make(chan searchReply, 1)
	if err := a.send(ctx, searchCmd{query: query, topK: topK, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.hits, r.err
	case <-ctx.Done():
		return nil, releerr.ChannelError(releerr.CodeReplyTimeout, "bm25 search reply timed out", ctx.Err())
	}
}

// Status reports the actor's current lifecycle state.
func (a *BM25Actor) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := a.send(ctx, statusCmd{reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, releerr.ChannelError(releerr.CodeReplyTimeout, "bm25 status reply timed out", ctx.Err())
	}
}

// Save writes the sidecar JSON {"version","docs"} to path.
func (a *BM25Actor) Save(ctx context.Context, path string) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, saveCmd{path: path, reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// Load always rebuilds the live index from the configured source; the
// sidecar at path is read only as a staleness signal, never as index
// content.
func (a *BM25Actor) Load(ctx context.Context, path string) error {
	reply := make(chan error, 1)
	if err := a.send(ctx, loadCmd{path: path, reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// Close stops the actor's goroutine. Commands sent after Close return
// CodeActorClosed synchronously.
func (a *BM25Actor) Close() {
	reply := make(chan struct{})
	select {
	case a.cmdCh <- closeCmd{reply: reply}:
		<-a.doneCh
	case <-a.doneCh:
	}
}

func (a *BM25Actor) send(ctx context.Context, cmd any) error {
	// Check doneCh first: once the actor has stopped, cmdCh still has free
	// buffer space, and a select over both would pick either case at random.
	select {
	case <-a.doneCh:
		return releerr.ChannelError(releerr.CodeActorClosed, "bm25actor is closed", nil)
	default:
	}
	select {
	case a.cmdCh <- cmd:
		return nil
	case <-a.doneCh:
		return releerr.ChannelError(releerr.CodeActorClosed, "bm25actor is closed", nil)
	case <-ctx.Done():
		return releerr.ChannelError(releerr.CodeReplyTimeout, "bm25actor send timed out", ctx.Err())
	}
}

func (a *BM25Actor) awaitErr(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return releerr.ChannelError(releerr.CodeReplyTimeout, "bm25actor reply timed out", ctx.Err())
	case <-a.doneCh:
		return releerr.ChannelError(releerr.CodeActorClosed, "bm25actor is closed", nil)
	}
}
