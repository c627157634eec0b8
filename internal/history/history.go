// package history records completed enrichments in SQLite
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS enrichments (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id       TEXT NOT NULL,
	artist         TEXT NOT NULL,
	track          TEXT NOT NULL,
	album          TEXT NOT NULL DEFAULT '',
	path           TEXT NOT NULL,
	tags_updated   INTEGER NOT NULL DEFAULT 0,
	cover_embedded INTEGER NOT NULL DEFAULT 0,
	completed_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrichments_completed_at ON enrichments(completed_at);
`

// Store persists one row per completed worker pipeline.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database at path and ensures the
// schema exists. The path can be ":memory:" in tests.
func NewStore(path string) (*Store, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, 1, 1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a completed enrichment.
func (s *Store) Record(rec models.HistoryRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO enrichments (track_id, artist, track, album, path, tags_updated, cover_embedded, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TrackID, rec.Artist, rec.Track, rec.Album, rec.Path,
		rec.TagsUpdated, rec.CoverEmbedded, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("recording enrichment: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, track_id, artist, track, album, path, tags_updated, cover_embedded, completed_at
		 FROM enrichments ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var rec models.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.TrackID, &rec.Artist, &rec.Track, &rec.Album,
			&rec.Path, &rec.TagsUpdated, &rec.CoverEmbedded, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
