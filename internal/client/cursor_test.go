package client

import (
	"testing"

	"github.com/hydraplus/hydra/internal/models"
)

func eventsWithIDs(ids ...uint64) []models.Event {
	events := make([]models.Event, len(ids))
	for i, id := range ids {
		events[i] = models.Event{ID: id, Type: models.EventInfo}
	}
	return events
}

func TestEventCursor(t *testing.T) {
	t.Run("ingests in order and advances the mark", func(t *testing.T) {
		var cursor EventCursor

		fresh := cursor.Advance("", eventsWithIDs(1, 2, 3))
		if len(fresh) != 3 {
			t.Fatalf("got %d events, want 3", len(fresh))
		}
		if cursor.LastID() != 3 {
			t.Errorf("mark = %d, want 3", cursor.LastID())
		}

		fresh = cursor.Advance("", eventsWithIDs(2, 3, 4))
		if len(fresh) != 1 || fresh[0].ID != 4 {
			t.Errorf("expected only ID 4, got %v", fresh)
		}
	})

	t.Run("no events means no update", func(t *testing.T) {
		cursor := EventCursor{lastID: 42}
		if fresh := cursor.Advance("", nil); fresh != nil {
			t.Errorf("expected nil, got %v", fresh)
		}
		if cursor.LastID() != 42 {
			t.Errorf("mark moved to %d", cursor.LastID())
		}
	})

	t.Run("restart heuristic resets the mark", func(t *testing.T) {
		// S4: consumer at 42, server restarted, first new event has ID 1.
		cursor := EventCursor{lastID: 42}

		fresh := cursor.Advance("", eventsWithIDs(1))
		if len(fresh) != 1 || fresh[0].ID != 1 {
			t.Fatalf("expected the post-restart event, got %v", fresh)
		}
		if cursor.LastID() != 1 {
			t.Errorf("mark = %d, want 1", cursor.LastID())
		}
	})

	t.Run("regression at or above threshold is not a restart", func(t *testing.T) {
		cursor := EventCursor{lastID: 42}

		fresh := cursor.Advance("", eventsWithIDs(11, 12))
		if len(fresh) != 0 {
			t.Errorf("IDs below the mark but above threshold must be ignored, got %v", fresh)
		}
		if cursor.LastID() != 42 {
			t.Errorf("mark = %d, want 42", cursor.LastID())
		}
	})

	t.Run("instance nonce change is authoritative", func(t *testing.T) {
		var cursor EventCursor
		cursor.Advance("inst-a", eventsWithIDs(1, 2, 3))

		// Restarted server, fresh nonce, IDs above the old mark: the
		// heuristic alone would miss this.
		fresh := cursor.Advance("inst-b", eventsWithIDs(1, 2))
		if len(fresh) != 2 {
			t.Errorf("expected both events after nonce change, got %v", fresh)
		}
	})

	t.Run("stable nonce does not reset", func(t *testing.T) {
		var cursor EventCursor
		cursor.Advance("inst-a", eventsWithIDs(1, 2, 3))
		fresh := cursor.Advance("inst-a", eventsWithIDs(1, 2, 3))
		if len(fresh) != 0 {
			t.Errorf("expected no fresh events, got %v", fresh)
		}
	})
}
