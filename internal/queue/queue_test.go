package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "nicotine-queue.json"))
}

func TestStore(t *testing.T) {
	t.Run("Append assigns monotonic search IDs", func(t *testing.T) {
		store := newTestStore(t)

		first, err := store.Append(models.SearchRequest{Query: "prince purple rain"})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		second, err := store.Append(models.SearchRequest{Query: "prince when doves cry"})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		if first.SearchID != 1 || second.SearchID != 2 {
			t.Errorf("expected IDs 1,2 got %d,%d", first.SearchID, second.SearchID)
		}
		if first.Processed {
			t.Error("new request should not be processed")
		}
		if first.Timestamp.IsZero() {
			t.Error("Append should stamp the request")
		}
	})

	t.Run("Unprocessed preserves insertion order", func(t *testing.T) {
		store := newTestStore(t)
		for _, q := range []string{"a", "b", "c"} {
			if _, err := store.Append(models.SearchRequest{Query: q}); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		pending, err := store.Unprocessed()
		if err != nil {
			t.Fatalf("Unprocessed failed: %v", err)
		}
		if len(pending) != 3 {
			t.Fatalf("expected 3 pending, got %d", len(pending))
		}
		for i, q := range []string{"a", "b", "c"} {
			if pending[i].Query != q {
				t.Errorf("pending[%d] = %q, want %q", i, pending[i].Query, q)
			}
		}
	})

	t.Run("MarkProcessedByTimestamp is idempotent", func(t *testing.T) {
		store := newTestStore(t)
		stored, err := store.Append(models.SearchRequest{Query: "a"})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		n, err := store.MarkProcessedByTimestamp(stored.Timestamp)
		if err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if n != 1 {
			t.Errorf("first mark changed %d entries, want 1", n)
		}

		n, err = store.MarkProcessedByTimestamp(stored.Timestamp)
		if err != nil {
			t.Fatalf("repeat mark failed: %v", err)
		}
		if n != 0 {
			t.Errorf("repeat mark changed %d entries, want 0", n)
		}

		pending, _ := store.Unprocessed()
		if len(pending) != 0 {
			t.Errorf("expected empty pending after mark, got %d", len(pending))
		}
	})

	t.Run("MarkProcessedByIDs", func(t *testing.T) {
		store := newTestStore(t)
		a, _ := store.Append(models.SearchRequest{Query: "a"})
		b, _ := store.Append(models.SearchRequest{Query: "b"})

		n, err := store.MarkProcessedByIDs([]int64{a.SearchID, b.SearchID, 99})
		if err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		if n != 2 {
			t.Errorf("changed %d entries, want 2", n)
		}
	})

	t.Run("Cleanup drops old processed entries only", func(t *testing.T) {
		store := newTestStore(t)
		old, _ := store.Append(models.SearchRequest{Query: "old"})
		fresh, _ := store.Append(models.SearchRequest{Query: "fresh"})
		stale, _ := store.Append(models.SearchRequest{Query: "stale unprocessed"})
		_ = stale

		store.MarkProcessedByIDs([]int64{old.SearchID, fresh.SearchID})

		removed, err := store.Cleanup(time.Now().Add(2 * time.Hour))
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("removed %d, want 2 (only processed entries expire)", removed)
		}

		pending, _ := store.Unprocessed()
		if len(pending) != 1 || pending[0].Query != "stale unprocessed" {
			t.Errorf("unprocessed entries must be retained indefinitely, got %v", pending)
		}
	})

	t.Run("IDs survive cleanup without reuse", func(t *testing.T) {
		store := newTestStore(t)

		first, err := store.Append(models.SearchRequest{Query: "a"})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		store.MarkProcessedByIDs([]int64{first.SearchID})
		if _, err := store.Cleanup(time.Now().Add(2 * time.Hour)); err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}

		second, err := store.Append(models.SearchRequest{Query: "b"})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if second.SearchID <= first.SearchID {
			t.Errorf("search_id regressed after cleanup: first=%d second=%d", first.SearchID, second.SearchID)
		}
	})

	t.Run("queue file is a valid searches document after every operation", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nicotine-queue.json")
		store := NewStore(path)

		stored, _ := store.Append(models.SearchRequest{Query: "a"})
		store.MarkProcessedByTimestamp(stored.Timestamp)
		store.Cleanup(time.Now().Add(2 * time.Hour))

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading queue file: %v", err)
		}
		var doc struct {
			Searches *[]models.SearchRequest `json:"searches"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("queue file is not valid JSON: %v", err)
		}
		if doc.Searches == nil {
			t.Error("queue file missing searches array")
		}
	})

	t.Run("legacy top-level array is accepted", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nicotine-queue.json")
		legacy := `[{"search_id": 7, "query": "legacy", "processed": false, "timestamp": "2024-01-01T00:00:00Z"}]`
		if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
			t.Fatalf("writing legacy file: %v", err)
		}

		store := NewStore(path)
		pending, err := store.Unprocessed()
		if err != nil {
			t.Fatalf("Unprocessed failed on legacy file: %v", err)
		}
		if len(pending) != 1 || pending[0].Query != "legacy" {
			t.Errorf("legacy entry not parsed: %v", pending)
		}

		stored, err := store.Append(models.SearchRequest{Query: "new"})
		if err != nil {
			t.Fatalf("Append on legacy file failed: %v", err)
		}
		if stored.SearchID != 8 {
			t.Errorf("expected ID continuation from legacy max, got %d", stored.SearchID)
		}
	})
}
