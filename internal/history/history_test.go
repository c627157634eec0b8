package history

import (
	"testing"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

func TestStore(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	t.Run("Record and Recent round-trip", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Second)
		for i, name := range []string{"first", "second", "third"} {
			err := store.Record(models.HistoryRecord{
				TrackID:       name,
				Artist:        "Prince",
				Track:         name,
				Album:         "Purple Rain",
				Path:          "/music/" + name + ".mp3",
				TagsUpdated:   true,
				CoverEmbedded: i%2 == 0,
				CompletedAt:   base.Add(time.Duration(i) * time.Minute),
			})
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
		}

		records, err := store.Recent(10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("got %d records, want 3", len(records))
		}
		if records[0].TrackID != "third" {
			t.Errorf("newest first: got %q", records[0].TrackID)
		}
		if !records[0].TagsUpdated {
			t.Error("tags_updated lost in round-trip")
		}
	})

	t.Run("limit is applied", func(t *testing.T) {
		records, err := store.Recent(2)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("got %d records, want 2", len(records))
		}
	})

	t.Run("zero completed_at defaults to now", func(t *testing.T) {
		if err := store.Record(models.HistoryRecord{TrackID: "x", Artist: "A", Track: "T", Path: "/x.mp3"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
		records, _ := store.Recent(1)
		if records[0].CompletedAt.IsZero() {
			t.Error("completed_at not defaulted")
		}
	})
}
