package ioactor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/store"
)

// IoActor performs bounded-concurrency file reads on behalf of the
// snippet pipeline and the get_file_metadata/list_dir tool contracts.
type IoActor struct {
	concurrency int
	closed      bool
	mu          sync.Mutex
}

// Option configures IoActor construction.
type Option func(*IoActor)

// WithConcurrencyOverride pins the semaphore size, taking precedence over
// the PLOKE_IO_FD_LIMIT env var and the soft-nofile heuristic.
func WithConcurrencyOverride(n int) Option {
	return func(a *IoActor) { a.concurrency = n }
}

// New builds an IoActor, sizing its read semaphore from the builder
// override, the PLOKE_IO_FD_LIMIT env var, or a third of the process's
// soft RLIMIT_NOFILE, in that order of precedence.
func New(opts ...Option) *IoActor {
	a := &IoActor{}
	for _, opt := range opts {
		opt(a)
	}
	a.concurrency = computeConcurrency(a.concurrency)
	return a
}

// Close marks the actor shut down. Calls made after Close return
// CodeActorClosed synchronously; in-flight calls are left to complete.
func (a *IoActor) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *IoActor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type fileRead struct {
	content []byte
	hash    store.TrackingHash
	err     error
}

// GetSnippetsBatch reads every distinct file referenced by reqs at most
// once, then slices the requested byte spans out of the shared read. If a
// file's computed TrackingHash does not match a request's
// ExpectedFileHash, that request (and only that request) fails with
// CodeHashMismatch — other requests against the same file are unaffected
// since the hash check happens per request, not per file.
func (a *IoActor) GetSnippetsBatch(ctx context.Context, reqs []SnippetReq) []SnippetResult {
	results := make([]SnippetResult, len(reqs))

	if a.isClosed() {
		err := releerr.ChannelError(releerr.CodeActorClosed, "ioactor is closed", nil)
		for i := range results {
			results[i] = SnippetResult{Err: err}
		}
		return results
	}

	type pathGroup struct {
		indices []int
	}
	groups := make(map[string]*pathGroup)
	order := make([]string, 0, len(reqs))

	for i, req := range reqs {
		if !filepath.IsAbs(req.FilePath) {
			results[i] = SnippetResult{Err: releerr.IOError(releerr.CodeInvalidPath, "file path must be absolute: "+req.FilePath, nil)}
			continue
		}
		g, ok := groups[req.FilePath]
		if !ok {
			g = &pathGroup{}
			groups[req.FilePath] = g
			order = append(order, req.FilePath)
		}
		g.indices = append(g.indices, i)
	}

	reads := make(map[string]*fileRead, len(order))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, path := range order {
		path := path
		g.Go(func() error {
			content, err := readWholeFile(gctx, path)
			fr := &fileRead{}
			if err != nil {
				fr.err = err
			} else {
				fr.content = content
				fr.hash = store.NewTrackingHash(path, []string{string(content)})
			}
			mu.Lock()
			reads[path] = fr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for path, grp := range groups {
		fr := reads[path]
		for _, idx := range grp.indices {
			req := reqs[idx]
			if fr.err != nil {
				results[idx] = SnippetResult{Err: fr.err}
				continue
			}
			if !req.ExpectedFileHash.IsZero() && fr.hash != req.ExpectedFileHash {
				results[idx] = SnippetResult{Err: releerr.IOError(releerr.CodeHashMismatch, "tracking hash mismatch for "+path, nil)}
				continue
			}
			if req.StartByte == req.EndByte {
				results[idx] = SnippetResult{Content: ""}
				continue
			}
			if req.StartByte < 0 || req.EndByte > len(fr.content) || req.StartByte > req.EndByte {
				results[idx] = SnippetResult{Err: releerr.IOError(releerr.CodeFileTooLarge, "byte span out of range for "+path, nil)}
				continue
			}
			results[idx] = SnippetResult{Content: string(fr.content[req.StartByte:req.EndByte])}
		}
	}

	return results
}

func readWholeFile(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, releerr.IOError(releerr.CodeFileNotFound, "file not found: "+path, err)
		}
		if os.IsPermission(err) {
			return nil, releerr.IOError(releerr.CodeFilePermission, "permission denied: "+path, err)
		}
		return nil, releerr.IOError(releerr.CodeFileNotFound, "read failed: "+path, err)
	}
	return content, nil
}

// ReadFile is a policy-aware single-file reader backing the
// get_file_metadata/list_dir tool contracts. It truncates content past
// maxBytes rather than failing.
func (a *IoActor) ReadFile(ctx context.Context, path string, rng ByteRange, maxBytes int, strategy ReadStrategy) (ReadResponse, error) {
	if a.isClosed() {
		return ReadResponse{}, releerr.ChannelError(releerr.CodeActorClosed, "ioactor is closed", nil)
	}
	if !filepath.IsAbs(path) {
		return ReadResponse{}, releerr.IOError(releerr.CodeInvalidPath, "file path must be absolute: "+path, nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReadResponse{Exists: false}, nil
		}
		return ReadResponse{}, releerr.IOError(releerr.CodeFilePermission, "stat failed: "+path, err)
	}
	if info.IsDir() {
		return ReadResponse{}, releerr.IOError(releerr.CodeInvalidPath, "path is a directory: "+path, nil)
	}

	content, err := readWholeFile(ctx, path)
	if err != nil {
		return ReadResponse{}, err
	}

	if !rng.Whole && (rng.Start != 0 || rng.End != 0) {
		if rng.Start < 0 || rng.End > len(content) || rng.Start > rng.End {
			return ReadResponse{}, releerr.IOError(releerr.CodeFileTooLarge, "byte range out of bounds: "+path, nil)
		}
		content = content[rng.Start:rng.End]
	}

	truncated := false
	if maxBytes > 0 && len(content) > maxBytes {
		content = content[:maxBytes]
		truncated = true
	}

	return ReadResponse{
		Exists:    true,
		ByteLen:   len(content),
		Content:   string(content),
		Truncated: truncated,
	}, nil
}

// ScanChanges reports, per file, whether the file is unchanged, modified,
// or missing relative to the tracking hash recorded for it. Reads run with
// the same concurrency limit as GetSnippetsBatch.
func (a *IoActor) ScanChanges(ctx context.Context, files []string, hashes []store.TrackingHash) []ChangeStatus {
	statuses := make([]ChangeStatus, len(files))

	if a.isClosed() {
		err := releerr.ChannelError(releerr.CodeActorClosed, "ioactor is closed", nil)
		for i, f := range files {
			statuses[i] = ChangeStatus{FilePath: f, Err: err}
		}
		return statuses
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i := range files {
		i := i
		g.Go(func() error {
			path := files[i]
			expected := hashes[i]

			if !filepath.IsAbs(path) {
				statuses[i] = ChangeStatus{FilePath: path, Err: releerr.IOError(releerr.CodeInvalidPath, "file path must be absolute: "+path, nil)}
				return nil
			}

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			content, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					statuses[i] = ChangeStatus{FilePath: path, Status: StatusMissing}
					return nil
				}
				statuses[i] = ChangeStatus{FilePath: path, Err: releerr.IOError(releerr.CodeFilePermission, "read failed: "+path, err)}
				return nil
			}

			actual := store.NewTrackingHash(path, []string{string(content)})
			if actual == expected {
				statuses[i] = ChangeStatus{FilePath: path, Status: StatusUnchanged}
			} else {
				statuses[i] = ChangeStatus{FilePath: path, Status: StatusModified}
			}
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}
