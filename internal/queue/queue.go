// package queue persists the search-request queue as a single JSON document
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

// retention is how long processed entries survive before cleanup drops them.
const retention = time.Hour

// document is the on-disk shape of the queue file. NextID is the persisted
// high-water mark for search_id assignment; it never decreases, so IDs stay
// monotonic even after cleanup drops the entries they were derived from.
type document struct {
	Searches []models.SearchRequest `json:"searches"`
	NextID   int64                  `json:"next_id,omitempty"`
}

// nextID returns the ID to assign and bumps the mark. Documents written
// before the mark existed (and legacy arrays) seed it from the surviving
// entries.
func (d *document) nextID() int64 {
	if d.NextID == 0 {
		for _, existing := range d.Searches {
			if existing.SearchID >= d.NextID {
				d.NextID = existing.SearchID + 1
			}
		}
		if d.NextID == 0 {
			d.NextID = 1
		}
	}
	id := d.NextID
	d.NextID++
	return id
}

// Store owns the queue document. The state service is the sole mutator;
// operations read-modify-write the whole file under a process-local mutex
// and persist via write-temp-then-rename.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by the JSON document at path.
// The file is created lazily on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append assigns the next search_id and timestamp, appends the request and
// persists the document. The stored request is returned.
func (s *Store) Append(req models.SearchRequest) (models.SearchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.SearchRequest{}, err
	}

	req.SearchID = doc.nextID()
	req.Timestamp = time.Now().UTC()
	req.Processed = false
	doc.Searches = append(doc.Searches, req)

	if err := s.save(doc); err != nil {
		return models.SearchRequest{}, err
	}

	return req, nil
}

// Unprocessed returns the pending entries in insertion order.
func (s *Store) Unprocessed() ([]models.SearchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	pending := make([]models.SearchRequest, 0, len(doc.Searches))
	for _, req := range doc.Searches {
		if !req.Processed {
			pending = append(pending, req)
		}
	}

	return pending, nil
}

// MarkProcessedByTimestamp sets processed=true on every entry whose timestamp
// matches. Returns the number of entries changed; repeat calls are no-ops.
func (s *Store) MarkProcessedByTimestamp(ts time.Time) (int, error) {
	return s.mark(func(req *models.SearchRequest) bool {
		return req.Timestamp.Equal(ts)
	})
}

// MarkProcessedByIDs sets processed=true on every entry whose search_id is in ids.
func (s *Store) MarkProcessedByIDs(ids []int64) (int, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return s.mark(func(req *models.SearchRequest) bool {
		return wanted[req.SearchID]
	})
}

func (s *Store) mark(match func(*models.SearchRequest) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range doc.Searches {
		if !doc.Searches[i].Processed && match(&doc.Searches[i]) {
			doc.Searches[i].Processed = true
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}

	if err := s.save(doc); err != nil {
		return 0, err
	}

	return changed, nil
}

// Cleanup drops processed entries older than one hour. Unprocessed entries
// are retained indefinitely. Returns the number of entries removed.
func (s *Store) Cleanup(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := doc.Searches[:0]
	removed := 0
	for _, req := range doc.Searches {
		if req.Processed && now.Sub(req.Timestamp) > retention {
			removed++
			continue
		}
		kept = append(kept, req)
	}

	if removed == 0 {
		return 0, nil
	}

	doc.Searches = kept
	if err := s.save(doc); err != nil {
		return 0, err
	}

	return removed, nil
}

// load reads and parses the queue document. A missing file yields an empty
// queue. A legacy top-level array is accepted as the searches list.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("reading queue file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err == nil {
		return &doc, nil
	}

	var legacy []models.SearchRequest
	if err := json.Unmarshal(data, &legacy); err == nil {
		return &document{Searches: legacy}, nil
	}

	return nil, fmt.Errorf("parsing queue file %s: not a searches document or array", s.path)
}

// save writes the document to a temp file and renames it into place.
func (s *Store) save(doc *document) error {
	if doc.Searches == nil {
		doc.Searches = []models.SearchRequest{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling queue: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing queue file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing queue file: %w", err)
	}

	return nil
}
