package executor

import (
	"sync"
	"time"
)

// Dedup drops strategy signals that were already processed within a TTL
// window. External signal sources deliver at-least-once; executing a
// redelivered signal would double the position. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // signal ID -> first seen
	ttl  time.Duration
}

// NewDedup creates a Dedup with the given duplicate window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate reports whether the signal ID was seen within the TTL. An
// unseen or expired ID is recorded and reported as fresh.
func (d *Dedup) IsDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[id]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

// Cleanup evicts expired entries. Called periodically from the coordinator
// loop so the map stays bounded.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}
