// package models defines the data model shared by the Hydra+ services and the plugin coordinator
package models

import (
	"time"
)

// Kind distinguishes single-track requests from whole-album requests.
type Kind string

const (
	KindTrack Kind = "track"
	KindAlbum Kind = "album"
)

// FormatPreference selects which audio format candidate scoring should favour.
type FormatPreference string

const (
	FormatMP3  FormatPreference = "mp3"
	FormatFLAC FormatPreference = "flac"
)

// SearchRequest is the unit of work accepted by the state service and
// consumed by the plugin coordinator. Once Processed is true no field
// mutates; processed entries are purged from the queue after one hour.
type SearchRequest struct {
	SearchID         int64            `json:"search_id"`
	Kind             Kind             `json:"kind"`
	Query            string           `json:"query"`
	Artist           string           `json:"artist,omitempty"`
	Track            string           `json:"track,omitempty"`
	Album            string           `json:"album,omitempty"`
	TrackID          string           `json:"track_id,omitempty"` // opaque streaming-service identifier
	Duration         int              `json:"duration,omitempty"` // seconds
	FormatPreference FormatPreference `json:"format_preference"`
	AutoDownload     bool             `json:"auto_download"`
	MetadataOverride bool             `json:"metadata_override"`
	Tracks           []AlbumTrack     `json:"tracks,omitempty"` // present iff Kind == album
	Year             string           `json:"year,omitempty"`   // album only
	Timestamp        time.Time        `json:"timestamp"`
	Processed        bool             `json:"processed"`
}

// AlbumTrack is one entry of an album request's track list.
type AlbumTrack struct {
	TrackNumber int    `json:"track_number"`
	Artist      string `json:"artist"`
	Track       string `json:"track"`
	TrackID     string `json:"track_id,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

// EventType classifies console events for UI colouring.
type EventType string

const (
	EventInfo    EventType = "info"
	EventSuccess EventType = "success"
	EventWarning EventType = "warning"
	EventError   EventType = "error"
)

// Event is one element of the state service's bounded event log.
// IDs increase strictly within one process lifetime and reset on restart;
// consumers detect the regression and reset their high-water mark.
type Event struct {
	ID        uint64    `json:"id"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	TrackID   string    `json:"track_id,omitempty"`
}

// ProgressEntry tracks one in-flight download, keyed by track_id.
// Percent is monotone non-decreasing while the entry is live; CompletedAt is
// set exactly once when percent first reaches 100.
type ProgressEntry struct {
	Filename    string     `json:"filename"`
	Percent     float64    `json:"percent"`
	BytesDone   int64      `json:"bytes_done"`
	BytesTotal  int64      `json:"bytes_total"`
	LastUpdate  time.Time  `json:"last_update"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Candidate is a scored remote file offered by a peer in response to a search.
type Candidate struct {
	Peer        string `json:"peer"`
	VirtualPath string `json:"virtual_path"`
	SizeBytes   int64  `json:"size_bytes"`
	Bitrate     int    `json:"bitrate,omitempty"`
	Duration    int    `json:"duration,omitempty"` // seconds
	Score       int    `json:"score"`
}

// RenamePattern holds the two filename templates the browser re-sends on each
// connect. Tokens: {artist} {track} {album} {year} {trackNum}.
type RenamePattern struct {
	SingleTrack string `json:"single_track"`
	AlbumTrack  string `json:"album_track"`
}

// DefaultRenamePattern returns the patterns used until the browser overrides them.
func DefaultRenamePattern() RenamePattern {
	return RenamePattern{
		SingleTrack: "{artist} - {track}",
		AlbumTrack:  "{trackNum} {artist} - {track}",
	}
}

// Credentials is the persisted Spotify client-credentials pair.
// The JSON keys mirror the on-disk spotify-credentials.json document.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// DebugSettings is the persisted debug-settings.json document.
type DebugSettings struct {
	DebugWindows bool `json:"debugWindows"`
}

// TrackMetadata is the merged result of the public-page scrape and the
// credentialed API fetch. Every field is optional; enrichment degrades to
// whatever subset resolved.
type TrackMetadata struct {
	Year        string `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Label       string `json:"label,omitempty"`
}

// HistoryRecord is one completed enrichment, persisted by the worker.
type HistoryRecord struct {
	ID            int64     `json:"id"`
	TrackID       string    `json:"track_id"`
	Artist        string    `json:"artist"`
	Track         string    `json:"track"`
	Album         string    `json:"album,omitempty"`
	Path          string    `json:"path"`
	TagsUpdated   bool      `json:"tags_updated"`
	CoverEmbedded bool      `json:"cover_embedded"`
	CompletedAt   time.Time `json:"completed_at"`
}
