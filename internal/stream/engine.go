// Package stream merges store snapshots with client-local messages into a
// single ordered view.
//
// The store always delivers the full current set of messages, so every
// remote update replaces the remote portion wholesale and re-sorts the
// union. Ordering is by timestamp; ties fall back to the order in which the
// engine first saw each message ID.
package stream

import (
	"sort"
	"sync"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

type entry struct {
	msg models.Message
	seq uint64
}

// Engine holds the merged view for one client. Safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	remote    []entry
	ephemeral []entry
	view      []models.Message
	arrival   map[string]uint64 // first-seen sequence per ID still in the view
	next      uint64
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{arrival: make(map[string]uint64)}
}

// ApplyRemoteSnapshot replaces the remote portion of the view with msgs.
// Ephemeral messages are kept. Messages without a committed timestamp, with
// a client-local ID, or repeating an ID already in the view are skipped.
func (e *Engine) ApplyRemoteSnapshot(msgs []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := make(map[string]struct{}, len(e.ephemeral))
	for _, en := range e.ephemeral {
		local[en.msg.ID] = struct{}{}
	}

	remote := make([]entry, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.Timestamp == 0 || m.ID == "" || models.IsEphemeralID(m.ID) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if _, dup := local[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		m.Origin = models.OriginRemote
		remote = append(remote, entry{msg: m, seq: e.sequence(m.ID)})
	}

	// Forget arrival order for remote messages that are gone.
	for _, old := range e.remote {
		if _, ok := seen[old.msg.ID]; !ok {
			delete(e.arrival, old.msg.ID)
		}
	}

	e.remote = remote
	e.rebuild()
}

// AddEphemeral appends one client-local message to the view. It returns
// false when the ID is empty or already present.
func (e *Engine) AddEphemeral(msg models.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg.ID == "" {
		return false
	}
	if _, ok := e.arrival[msg.ID]; ok {
		return false
	}

	msg.Origin = models.OriginEphemeral
	e.ephemeral = append(e.ephemeral, entry{msg: msg, seq: e.sequence(msg.ID)})
	e.rebuild()
	return true
}

// ClearAll empties both the remote and the ephemeral portions.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remote = nil
	e.ephemeral = nil
	e.view = nil
	e.arrival = make(map[string]uint64)
}

// ClearEphemeral drops every ephemeral message and keeps the remote portion.
func (e *Engine) ClearEphemeral() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.ephemeral {
		delete(e.arrival, ent.msg.ID)
	}
	e.ephemeral = nil
	e.rebuild()
}

// CurrentView returns a copy of the merged view, oldest first.
func (e *Engine) CurrentView() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Message, len(e.view))
	copy(out, e.view)
	return out
}

// Len returns the number of messages in the view.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.view)
}

// sequence returns the arrival sequence for id, assigning a new one on first
// sight. Caller holds e.mu.
func (e *Engine) sequence(id string) uint64 {
	if seq, ok := e.arrival[id]; ok {
		return seq
	}
	e.next++
	e.arrival[id] = e.next
	return e.next
}

// rebuild recomputes the sorted view. Caller holds e.mu.
func (e *Engine) rebuild() {
	all := make([]entry, 0, len(e.remote)+len(e.ephemeral))
	all = append(all, e.remote...)
	all = append(all, e.ephemeral...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].msg.Timestamp != all[j].msg.Timestamp {
			return all[i].msg.Timestamp < all[j].msg.Timestamp
		}
		return all[i].seq < all[j].seq
	})

	view := make([]models.Message, len(all))
	for i, en := range all {
		view[i] = en.msg
	}
	e.view = view
}
