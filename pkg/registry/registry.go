// Package registry provides the concurrency-safe mapping from submission id
// to the simulated status code that drives the mock's scripted responses.
package registry

import (
	"sort"
	"sync"
)

// Entity identifies which submission id space a key belongs to.
type Entity string

// Known submission entity kinds.
const (
	EntityContribution Entity = "Contribution"
	EntityFdc          Entity = "Fdc"
)

// Key identifies a single registry slot. When the registry is configured with
// a shared id space the entity component is collapsed, so a Contribution and
// an Fdc submission with the same numeric id hit the same slot.
type Key struct {
	Entity Entity `json:"entity"`
	ID     int    `json:"id"`
}

// Entry is one (key, status) pair from a registry snapshot.
type Entry struct {
	Entity     Entity `json:"entity,omitempty"`
	ID         int    `json:"id"`
	StatusCode int    `json:"statusCode"`
}

// Registry maps submission ids to their current simulated status code.
// Absence of a key means the id has never been seen and gets first-time
// behavior. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	statuses map[Key]int
	sharedID bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithSharedIDSpace collapses the entity component of every key so that both
// submission endpoints share one numeric id space, as the original backend
// mock behaved.
func WithSharedIDSpace() Option {
	return func(r *Registry) {
		r.sharedID = true
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		statuses: make(map[Key]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) normalize(key Key) Key {
	if r.sharedID {
		key.Entity = ""
	}
	return key
}

// Seed unconditionally sets the status for a key. Used by the admin API to
// script a response before the id is organically submitted, or to override
// whatever state a previous submission left behind.
func (r *Registry) Seed(key Key, statusCode int) {
	key = r.normalize(key)
	r.mu.Lock()
	r.statuses[key] = statusCode
	r.mu.Unlock()
}

// GetOrInit returns the current status for a key, inserting defaultStatus if
// the key is absent. The second return reports whether this call performed the
// insert, i.e. the id was seen for the first time. The check-and-insert is
// atomic: concurrent submissions of the same fresh id observe first-seen
// exactly once.
func (r *Registry) GetOrInit(key Key, defaultStatus int) (int, bool) {
	key = r.normalize(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.statuses[key]; ok {
		return current, false
	}
	r.statuses[key] = defaultStatus
	return defaultStatus, true
}

// Get returns the current status for a key without modifying the registry.
func (r *Registry) Get(key Key) (int, bool) {
	key = r.normalize(key)
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.statuses[key]
	return current, ok
}

// CompareAndSet advances the status for a key only if it still equals
// expected. Returns true if the swap happened. This is how a success state is
// advanced to its conflict state exactly once under concurrent duplicates.
func (r *Registry) CompareAndSet(key Key, expected, next int) bool {
	key = r.normalize(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.statuses[key]
	if !ok || current != expected {
		return false
	}
	r.statuses[key] = next
	return true
}

// Snapshot returns all entries ordered by entity then id for deterministic
// admin output.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.statuses))
	for key, status := range r.statuses {
		entries = append(entries, Entry{Entity: key.Entity, ID: key.ID, StatusCode: status})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Entity != entries[j].Entity {
			return entries[i].Entity < entries[j].Entity
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Count returns the number of registered ids.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.statuses)
}

// Clear removes all entries. Individual keys are never deleted; test teardown
// clears the whole registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.statuses = make(map[Key]int)
	r.mu.Unlock()
}
