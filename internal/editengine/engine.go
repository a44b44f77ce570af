package editengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/ploke-dev/rele/internal/config"
	"github.com/ploke-dev/rele/internal/eventbus"
	"github.com/ploke-dev/rele/internal/ioactor"
	"github.com/ploke-dev/rele/internal/releerr"
	"github.com/ploke-dev/rele/internal/resolver"
	"github.com/ploke-dev/rele/internal/store"
)

// Engine stages, previews, approves, denies, and applies edit proposals.
// Proposal registry access is a single RWMutex guarding a keyed map,
// grounded on the teacher's Server.mu pattern in internal/mcp/server.go;
// holders never perform I/O while holding the write lock — file writes
// happen after the lock is released, serialized instead by a per-path
// keyedMutex.
type Engine struct {
	resolver *resolver.Resolver
	io       *ioactor.IoActor
	bus      *eventbus.Bus
	cfg      config.EditingConfig

	mu        sync.RWMutex
	proposals map[uuid.UUID]*Proposal

	fileLocks *keyedMutex
}

// New builds an Engine over a Resolver (to locate Canonical edit targets)
// and an IoActor (to read current file bytes and write applied results).
func New(res *resolver.Resolver, io *ioactor.IoActor, bus *eventbus.Bus, cfg config.EditingConfig) *Engine {
	return &Engine{
		resolver:  res,
		io:        io,
		bus:       bus,
		cfg:       cfg,
		proposals: make(map[uuid.UUID]*Proposal),
		fileLocks: newKeyedMutex(),
	}
}

// Stage resolves every Canonical edit to a byte span, reads each touched
// file's current content once, and stores a Pending Proposal. It emits
// ProposalStaged on success.
func (e *Engine) Stage(ctx context.Context, req StageRequest) (uuid.UUID, error) {
	fileSplices := make(map[string][]resolvedSplice)
	before := make(map[string]string)

	for _, edit := range req.Edits {
		var filePath string
		var sp resolvedSplice

		switch edit.Kind {
		case EditCanonical:
			ce := edit.Canonical
			rows, err := e.resolver.ResolveExact(ctx, ce.NodeKind, ce.FilePath, ce.ModulePath, ce.ItemName)
			if err != nil {
				return uuid.UUID{}, err
			}
			if len(rows) == 0 {
				return uuid.UUID{}, releerr.DomainError(releerr.CodeNodeNotFound,
					fmt.Sprintf("no node resolved for %s/%s", ce.FilePath, ce.ItemName), nil)
			}
			node := rows[0]
			filePath = ce.FilePath

			content, err := e.readFile(ctx, filePath, before)
			if err != nil {
				return uuid.UUID{}, err
			}
			sp = resolvedSplice{
				startByte:        node.Span.Start,
				endByte:          node.Span.End,
				replacement:      ce.Code,
				expectedFileHash: store.NewTrackingHash(filePath, []string{content}),
			}

		case EditSplice:
			se := edit.Splice
			filePath = se.FilePath
			if _, err := e.readFile(ctx, filePath, before); err != nil {
				return uuid.UUID{}, err
			}
			sp = resolvedSplice{
				startByte:        se.StartByte,
				endByte:          se.EndByte,
				replacement:      se.Replacement,
				expectedFileHash: se.ExpectedFileHash,
			}

		default:
			return uuid.UUID{}, releerr.DomainError(releerr.CodeInternal, "unknown edit kind", nil)
		}

		fileSplices[filePath] = append(fileSplices[filePath], sp)
	}

	files := make([]string, 0, len(fileSplices))
	for f := range fileSplices {
		files = append(files, f)
	}
	sort.Strings(files)

	requestID := uuid.New()
	proposal := &Proposal{
		RequestID:   requestID,
		Status:      StatusPending,
		Files:       files,
		Confidence:  req.Confidence,
		fileSplices: fileSplices,
	}

	e.mu.Lock()
	e.proposals[requestID] = proposal
	e.mu.Unlock()

	preview := buildPreview(files, fileSplices, before, e.cfg)
	e.bus.Publish(ProposalStagedEvent{RequestID: requestID, Files: files, Preview: preview})

	if e.cfg.AutoConfirmEdits {
		_ = e.Approve(ctx, requestID)
	}

	return requestID, nil
}

// readFile reads path once via IoActor, caching its content into before so
// multiple edits against the same file in one Stage batch don't re-read.
func (e *Engine) readFile(ctx context.Context, path string, before map[string]string) (string, error) {
	if content, ok := before[path]; ok {
		return content, nil
	}
	resp, err := e.io.ReadFile(ctx, path, ioactor.ByteRange{Whole: true}, 0, ioactor.StrategyPlain)
	if err != nil {
		return "", err
	}
	if !resp.Exists {
		return "", releerr.IOError(releerr.CodeFileNotFound, "file not found: "+path, nil)
	}
	before[path] = resp.Content
	return resp.Content, nil
}

// Preview re-reads each of a proposal's files and rebuilds its diff and
// codeblock representations against their current content.
func (e *Engine) Preview(ctx context.Context, requestID uuid.UUID) (Preview, error) {
	e.mu.RLock()
	p, ok := e.proposals[requestID]
	e.mu.RUnlock()
	if !ok {
		return Preview{}, releerr.DomainError(releerr.CodeProposalNotFound, "no such proposal: "+requestID.String(), nil)
	}

	before := make(map[string]string, len(p.Files))
	for _, f := range p.Files {
		content, err := e.readFile(ctx, f, before)
		if err != nil {
			return Preview{}, err
		}
		before[f] = content
	}
	return buildPreview(p.Files, p.fileSplices, before, e.cfg), nil
}

// Approve transitions a Pending proposal to Approved and immediately
// triggers Apply, matching the state machine's approve-triggers-apply edge.
func (e *Engine) Approve(ctx context.Context, requestID uuid.UUID) error {
	if err := e.transition(requestID, StatusPending, StatusApproved); err != nil {
		return err
	}
	e.bus.Publish(ProposalApprovedEvent{RequestID: requestID})
	return e.Apply(ctx, requestID)
}

// Deny transitions a Pending proposal to Denied; no file writes occur.
func (e *Engine) Deny(requestID uuid.UUID) error {
	if err := e.transition(requestID, StatusPending, StatusDenied); err != nil {
		return err
	}
	e.bus.Publish(ProposalDeniedEvent{RequestID: requestID})
	return nil
}

func (e *Engine) transition(requestID uuid.UUID, from, to Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.proposals[requestID]
	if !ok {
		return releerr.DomainError(releerr.CodeProposalNotFound, "no such proposal: "+requestID.String(), nil)
	}
	if p.Status != from {
		return releerr.DomainError(releerr.CodeProposalWrongState,
			fmt.Sprintf("proposal %s is %s, not %s", requestID, p.Status, from), nil)
	}
	p.Status = to
	return nil
}

// Apply runs the five-step application sequence over an Approved
// proposal's files: hash-check every touched file, reject overlapping
// splices, splice+write atomically, recompute hashes, mark Applied. Any
// failure aborts the whole proposal — no partial file writes are visible,
// since each file's write is itself atomic (temp file + rename).
func (e *Engine) Apply(ctx context.Context, requestID uuid.UUID) error {
	e.mu.RLock()
	p, ok := e.proposals[requestID]
	e.mu.RUnlock()
	if !ok {
		return releerr.DomainError(releerr.CodeProposalNotFound, "no such proposal: "+requestID.String(), nil)
	}
	if p.Status != StatusApproved {
		return releerr.DomainError(releerr.CodeProposalWrongState,
			fmt.Sprintf("proposal %s is %s, not Approved", requestID, p.Status), nil)
	}

	newHashes := make(map[string]store.TrackingHash, len(p.Files))
	// Check every file's hash and splices before writing any of them, so a
	// failure on one file leaves all of the proposal's files untouched.
	for _, file := range p.Files {
		if err := e.applyFile(ctx, file, p.fileSplices[file], newHashes, false); err != nil {
			e.failProposal(p, err)
			return err
		}
	}
	for _, file := range p.Files {
		unlock := e.fileLocks.Lock(file)
		err := e.applyFile(ctx, file, p.fileSplices[file], newHashes, true)
		unlock()
		if err != nil {
			e.failProposal(p, err)
			return err
		}
	}

	e.mu.Lock()
	p.Status = StatusApplied
	p.newHashes = newHashes
	e.mu.Unlock()

	e.bus.Publish(ProposalAppliedEvent{RequestID: requestID, Files: p.Files, NewHashes: newHashes})
	return nil
}

func (e *Engine) failProposal(p *Proposal, cause error) {
	reason := reasonFor(cause)
	e.mu.Lock()
	p.Status = StatusFailed
	p.FailureReason = reason
	p.FailureDetail = cause.Error()
	e.mu.Unlock()
	e.bus.Publish(ProposalFailedEvent{RequestID: p.RequestID, Reason: reason, Detail: cause.Error()})
}

func reasonFor(err error) FailureReason {
	switch releerr.Code(err) {
	case releerr.CodeStaleTrackingHash, releerr.CodeHashMismatch:
		return ReasonHashMismatch
	case releerr.CodeOverlappingEdit:
		return ReasonOverlappingSplices
	case releerr.CodeNodeNotFound:
		return ReasonResolveMiss
	default:
		return ReasonIOError
	}
}

// applyFile re-reads path, verifies its hash and splices, and, when write is
// true, writes the spliced content atomically and records its new hash.
func (e *Engine) applyFile(ctx context.Context, path string, splices []resolvedSplice, newHashes map[string]store.TrackingHash, write bool) error {
	resp, err := e.io.ReadFile(ctx, path, ioactor.ByteRange{Whole: true}, 0, ioactor.StrategyPlain)
	if err != nil {
		return err
	}
	if !resp.Exists {
		return releerr.IOError(releerr.CodeFileNotFound, "file not found: "+path, nil)
	}

	currentHash := store.NewTrackingHash(path, []string{resp.Content})
	for _, sp := range splices {
		if sp.expectedFileHash != currentHash {
			return releerr.DomainError(releerr.CodeStaleTrackingHash, "tracking hash mismatch for "+path, nil)
		}
	}

	newContent, err := applySplices(resp.Content, splices)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if err := renameio.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return releerr.IOError(releerr.CodeAtomicWrite, "atomic write failed for "+path, err)
	}

	newHashes[path] = store.NewTrackingHash(path, []string{newContent})
	return nil
}

// applySplices sorts splices by ascending start-byte, rejects overlaps,
// and constructs the new buffer in one copy-splice-copy pass.
func applySplices(content string, splices []resolvedSplice) (string, error) {
	sorted := make([]resolvedSplice, len(splices))
	copy(sorted, splices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].startByte < sorted[j].startByte })

	var b strings.Builder
	cursor := 0
	for _, sp := range sorted {
		if sp.startByte < cursor {
			return "", releerr.DomainError(releerr.CodeOverlappingEdit, "overlapping splices in file", nil)
		}
		if sp.startByte < 0 || sp.endByte > len(content) || sp.startByte > sp.endByte {
			return "", releerr.IOError(releerr.CodeInvalidPath, "splice byte range out of bounds", nil)
		}
		b.WriteString(content[cursor:sp.startByte])
		b.WriteString(sp.replacement)
		cursor = sp.endByte
	}
	b.WriteString(content[cursor:])
	return b.String(), nil
}

func buildPreview(files []string, fileSplices map[string][]resolvedSplice, before map[string]string, cfg config.EditingConfig) Preview {
	var diffParts []string
	blocks := make([]CodeBlock, 0, len(files))

	for _, f := range files {
		b := before[f]
		after, err := applySplices(b, fileSplices[f])
		if err != nil {
			after = b
		}
		if d := unifiedDiff(f, b, after); d != "" {
			diffParts = append(diffParts, d)
		}
		blocks = append(blocks, CodeBlock{FilePath: f, Before: b, After: after})
	}

	mode := PreviewUnifiedDiff
	if cfg.PreviewMode == "code_block" {
		mode = PreviewCodeBlock
	}
	return Preview{Mode: mode, DiffText: strings.Join(diffParts, ""), CodeBlocks: blocks}
}

// Get returns a snapshot copy of a proposal's public fields, for tool
// responses that need status/files without exposing internal splice state.
func (e *Engine) Get(requestID uuid.UUID) (*Proposal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.proposals[requestID]
	if !ok {
		return nil, releerr.DomainError(releerr.CodeProposalNotFound, "no such proposal: "+requestID.String(), nil)
	}
	cp := *p
	return &cp, nil
}
