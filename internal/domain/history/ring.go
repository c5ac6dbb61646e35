// Package history keeps a bounded in-memory buffer of recent admission
// decisions for the read-only admin API. Nothing here is persisted.
package history

import (
	"sync"
	"time"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 50

// Outcome classifies how an admission concluded.
type Outcome string

const (
	OutcomeAllowed          Outcome = "allowed"
	OutcomeDenied           Outcome = "denied"
	OutcomeApprovalRequired Outcome = "approval_required"
	OutcomeToolError        Outcome = "allowed_but_tool_error"
	OutcomeClientCancelled  Outcome = "client_cancelled"
)

// Entry is one recorded admission decision.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	AgentID     string    `json:"agent_id"`
	Tool        string    `json:"tool"`
	Action      string    `json:"action"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason"`
	ParentAgent string    `json:"parent_agent,omitempty"`
	ApprovalID  string    `json:"approval_id,omitempty"`
}

// Ring is a fixed-capacity decision buffer with tail eviction: once full,
// each append drops the oldest entry. Appends are O(1); readers copy under
// the lock.
type Ring struct {
	mu    sync.Mutex
	buf   []Entry
	start int
	size  int
}

// NewRing creates a ring with the given capacity (DefaultCapacity if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Entry, capacity)}
}

// Append records an entry, evicting the oldest when the ring is full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = e
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

// Recent returns up to limit entries, oldest first with the newest last.
// limit <= 0 or beyond the stored count returns everything held.
func (r *Ring) Recent(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.size
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, n)
	// Take the newest n entries, preserving chronological order.
	first := r.start + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

// Len reports the number of stored entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity reports the fixed ring capacity.
func (r *Ring) Capacity() int {
	return len(r.buf)
}
