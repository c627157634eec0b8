// package progress tracks in-flight downloads for the state service
package progress

import (
	"sync"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

const (
	// completedRetention is how long a finished entry stays visible so the
	// UI can show the full bar before it clears.
	completedRetention = 60 * time.Second
	// staleRetention evicts entries whose transfer silently died.
	staleRetention = 10 * time.Minute
)

// Table is a concurrent map of track_id to progress entry.
type Table struct {
	mu      sync.Mutex
	entries map[string]*models.ProgressEntry
	now     func() time.Time
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*models.ProgressEntry),
		now:     time.Now,
	}
}

// Update inserts or mutates the entry for trackID. Percent never regresses
// while the entry is live; CompletedAt is set exactly once, on the first
// update that reaches 100.
func (t *Table) Update(trackID, filename string, percent float64, bytesDone, bytesTotal int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry, ok := t.entries[trackID]
	if !ok {
		entry = &models.ProgressEntry{}
		t.entries[trackID] = entry
	}

	if filename != "" {
		entry.Filename = filename
	}
	if percent > entry.Percent {
		entry.Percent = percent
	}
	if bytesDone > entry.BytesDone {
		entry.BytesDone = bytesDone
	}
	if bytesTotal > 0 {
		entry.BytesTotal = bytesTotal
	}
	entry.LastUpdate = now

	if entry.Percent >= 100 && entry.CompletedAt == nil {
		completed := now
		entry.CompletedAt = &completed
	}
}

// Remove deletes the entry for trackID. Removing an absent entry is a no-op.
func (t *Table) Remove(trackID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, trackID)
}

// Clear empties the table and returns the prior size.
func (t *Table) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	t.entries = make(map[string]*models.ProgressEntry)
	return n
}

// Cleanup evicts completed entries 60s after completion and incomplete
// entries 10min after their last update. Returns the number evicted.
func (t *Table) Cleanup(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for trackID, entry := range t.entries {
		switch {
		case entry.CompletedAt != nil && now.Sub(*entry.CompletedAt) > completedRetention:
			delete(t.entries, trackID)
			removed++
		case entry.CompletedAt == nil && now.Sub(entry.LastUpdate) > staleRetention:
			delete(t.entries, trackID)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of the table for /status.
func (t *Table) Snapshot() map[string]models.ProgressEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.ProgressEntry, len(t.entries))
	for trackID, entry := range t.entries {
		out[trackID] = *entry
	}
	return out
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
