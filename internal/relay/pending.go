package relay

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gqlrelay/gqlrelay/internal/proto"
)

// PendingEntry records one in-flight request awaiting its response. The
// table owns the client connection from insertion until the entry is taken
// or evicted.
type PendingEntry struct {
	ID          string
	Conn        net.Conn
	SubmittedAt time.Time
	Request     *proto.Envelope
}

// DuplicateIDError reports an insert for a correlation ID already in flight.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("relay: duplicate request id %q", e.ID)
}

// PendingTable maps correlation IDs to held client connections. All methods
// are safe for concurrent use; the lock covers table mutation only and is
// never held across I/O.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*PendingEntry
}

func NewPendingTable() *PendingTable {
	return &PendingTable{entries: map[string]*PendingEntry{}}
}

// Insert registers an entry under its correlation ID. A duplicate ID is
// rejected so the caller can report it to the submitting client instead of
// silently orphaning the earlier connection.
func (t *PendingTable) Insert(e *PendingEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[e.ID]; ok {
		return &DuplicateIDError{ID: e.ID}
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}
	t.entries[e.ID] = e
	return nil
}

// Take atomically removes and returns the entry for id. The second return
// is false when id is unknown or already resolved, which guarantees a
// response is delivered at most once even under duplicate deliveries.
func (t *PendingTable) Take(id string) (*PendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return e, ok
}

// EvictOlderThan removes and returns all entries submitted before
// now-maxAge.
func (t *PendingTable) EvictOlderThan(maxAge time.Duration) []*PendingEntry {
	cutoff := time.Now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*PendingEntry
	for id, e := range t.entries {
		if e.SubmittedAt.Before(cutoff) {
			delete(t.entries, id)
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of in-flight entries.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
