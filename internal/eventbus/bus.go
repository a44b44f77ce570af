// Package eventbus broadcasts typed lifecycle events (proposal staged/
// approved/applied, indexing progress) to every active subscriber.
package eventbus

import "sync"

// Kind names an event's concrete type, used by subscribers that only care
// about a subset of the event stream.
type Kind string

const (
	KindProposalStaged    Kind = "ProposalStaged"
	KindProposalApproved  Kind = "ProposalApproved"
	KindProposalDenied    Kind = "ProposalDenied"
	KindProposalApplied   Kind = "ProposalApplied"
	KindProposalFailed    Kind = "ProposalFailed"
	KindIndexingProgress  Kind = "IndexingProgress"
	KindIndexingCompleted Kind = "IndexingCompleted"
	KindIndexingCancelled Kind = "IndexingCancelled"
	KindIndexingFailed    Kind = "IndexingFailed"
)

// Event is implemented by every struct this bus carries.
type Event interface {
	EventKind() Kind
}

// Bus is a process-wide broadcast channel of typed events. Grounded on the
// teacher's Server.mu-guarded subscriber map (internal/mcp/server.go) and
// internal/async.IndexProgress's shape, generalized from a single polled
// progress struct to a fan-out of arbitrary typed events.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new listener with the given channel buffer size
// and returns its receive-only channel plus an unsubscribe func. Calling
// unsubscribe closes the channel; callers must stop reading from it once
// called.
func (b *Bus) Subscribe(buf int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buf)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts e to every current subscriber. A subscriber whose
// buffer is full is skipped for this event rather than blocking the
// publisher — lifecycle events are a best-effort UI feed, not a durable
// log.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
