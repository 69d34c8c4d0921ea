// Package registry — registry.go
//
// MeterRegistry is the keyed collection of per-subject (meter, divider,
// fsm) triples, guarded by a single sync.RWMutex over the map for
// insert/lookup, with each entry additionally owning its own sync.Mutex
// so concurrent updates to different subjects never contend with each
// other.
//
// Two well-known keys are pre-seeded at construction: "." (the catch-all
// OOM bucket) and "!" (reserved for a future message-flood bucket — see
// DESIGN.md for why it is kept but never written to).
package registry

import (
	"sync"

	"github.com/aleozlx/sprinkler/internal/anomaly"
	"github.com/aleozlx/sprinkler/internal/meter"
)

// CatchAllKey is the pre-seeded bucket for OOM events on containers with
// no pod-name attribute.
const CatchAllKey = "."

// ReservedFloodKey is pre-seeded but never written to; reserved for a
// future "other message flooding" bucket (see DESIGN.md).
const ReservedFloodKey = "!"

// Entry is one subject's (meter, divider, fsm) triple. All mutation goes
// through With, which holds Entry's own lock for the duration of the
// callback; callers must never retain a reference across a yield point.
type Entry struct {
	mu      sync.Mutex
	Meter   *meter.EventRateMeter
	Divider *meter.FrequencyDivider
	FSM     anomaly.Anomaly
}

// Seed describes the initial (divider interval, fsm state) for a newly
// inserted entry; its meter always starts with the default window.
type Seed struct {
	DividerInterval uint
	Initial         anomaly.Anomaly
}

func newEntry(seed Seed) *Entry {
	return &Entry{
		Meter:   meter.New(),
		Divider: meter.NewDivider(seed.DividerInterval),
		FSM:     seed.Initial,
	}
}

// With locks e and invokes f with pointers to its meter, divider, and fsm.
// f may mutate *fsm in place; the new value is stored back under the same
// lock acquisition.
func (e *Entry) With(f func(m *meter.EventRateMeter, d *meter.FrequencyDivider, fsm *anomaly.Anomaly)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f(e.Meter, e.Divider, &e.FSM)
}

// Registry is the keyed collection of Entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates a Registry pre-seeded with the catch-all and reserved keys.
func New(catchAllDividerInterval uint) *Registry {
	r := &Registry{entries: make(map[string]*Entry)}
	r.entries[CatchAllKey] = newEntry(Seed{DividerInterval: catchAllDividerInterval, Initial: anomaly.Negative()})
	r.entries[ReservedFloodKey] = newEntry(Seed{DividerInterval: catchAllDividerInterval, Initial: anomaly.Negative()})
	return r
}

// GetOrInsert returns the entry for key, inserting a freshly seeded one
// under an exclusive lock if absent. The common case (key already present)
// only takes the shared read lock, so concurrent readers never block each
// other; only the first observation of a new subject pays for the
// upgrade to a write lock, and the write path double-checks presence
// after acquiring it (another writer may have raced in).
func (r *Registry) GetOrInsert(key string, seed Seed) *Entry {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e
	}
	e = newEntry(seed)
	r.entries[key] = e
	return e
}

// Get returns the entry for key without inserting, and whether it exists.
func (r *Registry) Get(key string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}

// Insert forces key to a freshly seeded entry, replacing any existing one.
// Used for the "warm start" case, where the first anticipated-OOM of a
// previously unseen pod is seeded directly into Fixing(1) rather than
// Positive.
func (r *Registry) Insert(key string, seed Seed) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := newEntry(seed)
	r.entries[key] = e
	return e
}

// With is a convenience wrapper around GetOrInsert(key, seed).With(f).
func (r *Registry) With(key string, seed Seed, f func(m *meter.EventRateMeter, d *meter.FrequencyDivider, fsm *anomaly.Anomaly)) {
	r.GetOrInsert(key, seed).With(f)
}

// Len returns the number of tracked subjects, including the pre-seeded
// keys. Intended for metrics (observability.Metrics tracked-subjects gauge).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
