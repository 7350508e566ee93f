// Package journal provides the bounded in-memory log of every submission the
// mock has received, kept for inspection through the admin API.
//
// This is user-facing request history, distinct from operational logging
// (which uses log/slog). Entries are immutable once appended; the journal
// evicts from the front once the configured cap is exceeded.
package journal

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCap is the retention cap used when none is configured.
const DefaultCap = 1000

// Entry captures one received submission and the outcome the mock produced
// for it. Entries never mutate after creation.
type Entry struct {
	// ID is a unique identifier for the journal entry.
	ID string `json:"id"`

	// Timestamp is when the submission was received.
	Timestamp time.Time `json:"timestamp"`

	// Path is the request URI path.
	Path string `json:"uriPath"`

	// SubmissionID is the id extracted from the request envelope.
	SubmissionID int `json:"submissionId"`

	// Body is the raw request body, verbatim.
	Body string `json:"requestBody"`

	// StatusCode is the resolved status. For masked internal errors this is
	// the original stored code, not the 500 the client saw.
	StatusCode int `json:"statusCode"`

	// ResponseType is a human-readable label for the outcome.
	ResponseType string `json:"responseType"`

	// Entity is the stored entity kind, or "" when the outcome did not store
	// anything meaningful.
	Entity string `json:"storedType"`
}

// Filter narrows a Snapshot. Zero values match everything.
type Filter struct {
	// Entity filters by stored entity kind (exact match).
	Entity string

	// StatusCode filters by resolved status code.
	StatusCode int

	// Path filters by path prefix.
	Path string

	// Limit caps the number of entries returned, keeping the newest.
	Limit int
}

// Journal is an append-only, capacity-bounded request log.
// All methods are safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

// New creates a Journal with the given retention cap. Non-positive caps fall
// back to DefaultCap.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Journal{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}
}

// Cap returns the configured retention cap.
func (j *Journal) Cap() int {
	return j.cap
}

// Append adds an entry to the end of the journal, assigning an id and
// timestamp if unset, then trims the oldest entries until the size is within
// the cap. Append and trim are atomic as a unit relative to other appends.
func (j *Journal) Append(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	j.mu.Lock()
	j.entries = append(j.entries, entry)
	if excess := len(j.entries) - j.cap; excess > 0 {
		j.entries = append(j.entries[:0:0], j.entries[excess:]...)
	}
	j.mu.Unlock()
}

// Snapshot returns a copy of the retained entries in chronological order,
// optionally filtered. Pass nil to get everything.
func (j *Journal) Snapshot(filter *Filter) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		if filter != nil && !matches(entry, filter) {
			continue
		}
		result = append(result, entry)
	}

	if filter != nil && filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

// Count returns the number of retained entries.
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Clear empties the journal.
func (j *Journal) Clear() {
	j.mu.Lock()
	j.entries = j.entries[:0]
	j.mu.Unlock()
}

func matches(entry Entry, filter *Filter) bool {
	if filter.Entity != "" && entry.Entity != filter.Entity {
		return false
	}
	if filter.StatusCode != 0 && entry.StatusCode != filter.StatusCode {
		return false
	}
	if filter.Path != "" && !strings.HasPrefix(entry.Path, filter.Path) {
		return false
	}
	return true
}
