// package eventlog implements the state service's bounded in-memory event ring
package eventlog

import (
	"sync"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

const (
	// maxEvents caps the ring; the oldest entries are trimmed first.
	maxEvents = 50
	// ttl is how long an event stays visible before expiry.
	ttl = time.Hour
)

// Log is a bounded ring of console events with monotonically increasing IDs.
// IDs start at zero on every process start; consumers detect the regression
// and reset their high-water mark.
type Log struct {
	mu     sync.Mutex
	nextID uint64
	events []models.Event
	now    func() time.Time
}

// New creates an empty Log.
func New() *Log {
	return &Log{now: time.Now}
}

// Add assigns the next ID, appends the event, trims the head past capacity
// and opportunistically expires entries older than one hour.
func (l *Log) Add(typ models.EventType, message, trackID string) models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.nextID++
	event := models.Event{
		ID:        l.nextID,
		Type:      typ,
		Message:   message,
		Timestamp: now,
		TrackID:   trackID,
	}

	l.events = append(l.events, event)
	l.expireLocked(now)
	if over := len(l.events) - maxEvents; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}

	return event
}

// Since returns, in insertion order, every event with ID greater than lastID.
func (l *Log) Since(lastID uint64) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Event, 0, len(l.events))
	for _, e := range l.events {
		if e.ID > lastID {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns a copy of the live events in insertion order.
func (l *Log) Snapshot() []models.Event {
	return l.Since(0)
}

// Cleanup drops events older than one hour.
func (l *Log) Cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expireLocked(now)
}

func (l *Log) expireLocked(now time.Time) {
	kept := l.events[:0]
	for _, e := range l.events {
		if now.Sub(e.Timestamp) <= ttl {
			kept = append(kept, e)
		}
	}
	l.events = kept
}
