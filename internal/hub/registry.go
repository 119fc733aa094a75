// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hub

import (
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/eventhub/internal/subscription"
)

// entry is one live connection: its outbox, its mutable subscription state
// and the published snapshot the dispatcher reads.
type entry struct {
	id     ulid.ULID
	outbox *Outbox

	// mu serializes commands for this connection.
	mu     sync.Mutex
	state  subscription.State
	filter atomic.Pointer[subscription.Filter]
}

func newEntry(id ulid.ULID, outbox *Outbox) *entry {
	e := &entry{id: id, outbox: outbox}
	e.filter.Store(e.state.Snapshot())
	return e
}

// registry maps connection ids to entries. Pushes never happen under mu.
type registry struct {
	mu      sync.RWMutex
	entries map[ulid.ULID]*entry
	closed  bool
}

func newRegistry() *registry {
	return &registry{entries: make(map[ulid.ULID]*entry)}
}

// add inserts e and reports false once the registry is closed.
func (r *registry) add(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.entries[e.id] = e
	Connections.Inc()
	return true
}

// remove deletes the entry and closes its outbox. It reports whether the
// entry was present; repeated calls are no-ops.
func (r *registry) remove(id ulid.ULID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		Connections.Dec()
	}
	r.mu.Unlock()

	if ok {
		e.outbox.Close()
	}
	return ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// collect returns the entries whose published filter satisfies keep. The
// result is a copy; callers push after the lock is released.
func (r *registry) collect(keep func(*subscription.Filter) bool) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep == nil || keep(e.filter.Load()) {
			out = append(out, e)
		}
	}
	return out
}

// close removes every entry, refuses further adds and returns the removed
// entries so their outboxes can be closed outside the lock.
func (r *registry) close() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, e)
		delete(r.entries, id)
		Connections.Dec()
	}
	return out
}
