package state

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, req *http.Request, into any) bool {
	if err := json.NewDecoder(req.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed JSON: %v", err))
		return false
	}
	return true
}

func (s *Server) handlePing(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, "pong")
}

// handleStatus answers from memory only; no external I/O keeps it under the
// 50ms budget in all cases.
func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"instance":        s.instance,
		"events":          s.events.Snapshot(),
		"activeDownloads": s.progress.Snapshot(),
		"uptime":          time.Since(s.started).Seconds(),
		"counters":        s.metrics.snapshot(),
	})
}

// searchBody is the inbound /search document. Booleans are pointers so an
// absent field can default to true.
type searchBody struct {
	Query            string                  `json:"query"`
	Artist           string                  `json:"artist"`
	Track            string                  `json:"track"`
	Album            string                  `json:"album"`
	TrackID          string                  `json:"track_id"`
	Duration         int                     `json:"duration"`
	FormatPreference models.FormatPreference `json:"format_preference"`
	AutoDownload     *bool                   `json:"auto_download"`
	MetadataOverride *bool                   `json:"metadata_override"`
}

func defaultTrue(v *bool) bool {
	return v == nil || *v
}

func (s *Server) handleSearch(w http.ResponseWriter, req *http.Request) {
	var body searchBody
	if !decode(w, req, &body) {
		return
	}

	hasQuery := strings.TrimSpace(body.Query) != ""
	hasPair := strings.TrimSpace(body.Artist) != "" && strings.TrimSpace(body.Track) != ""
	if !hasQuery && !hasPair {
		writeError(w, http.StatusBadRequest, "need query or artist+track")
		return
	}

	query := body.Query
	if query == "" {
		query = fmt.Sprintf("%s %s", body.Artist, body.Track)
	}

	request := models.SearchRequest{
		Kind:             models.KindTrack,
		Query:            query,
		Artist:           body.Artist,
		Track:            body.Track,
		Album:            body.Album,
		TrackID:          body.TrackID,
		Duration:         body.Duration,
		FormatPreference: normalizeFormat(body.FormatPreference),
		AutoDownload:     defaultTrue(body.AutoDownload),
		MetadataOverride: defaultTrue(body.MetadataOverride),
	}

	stored, err := s.queue.Append(request)
	if err != nil {
		s.logger.Error("queue append failed", "error", err)
		writeError(w, http.StatusInternalServerError, "queue write failed")
		return
	}

	s.metrics.searches.Inc()
	s.metrics.events.Inc()
	s.events.Add(models.EventInfo, fmt.Sprintf("Queued search: %s", stored.Query), stored.TrackID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "search_id": stored.SearchID})
}

// searchAlbumBody accepts both kind:"album" and the legacy type:"album"
// marker; the stored record always carries kind.
type searchAlbumBody struct {
	Kind             string                  `json:"kind"`
	LegacyType       string                  `json:"type"`
	AlbumArtist      string                  `json:"album_artist"`
	AlbumName        string                  `json:"album_name"`
	Year             string                  `json:"year"`
	Tracks           []models.AlbumTrack     `json:"tracks"`
	FormatPreference models.FormatPreference `json:"format_preference"`
	AutoDownload     *bool                   `json:"auto_download"`
	MetadataOverride *bool                   `json:"metadata_override"`
}

func (s *Server) handleSearchAlbum(w http.ResponseWriter, req *http.Request) {
	var body searchAlbumBody
	if !decode(w, req, &body) {
		return
	}

	if body.AlbumArtist == "" || body.AlbumName == "" {
		writeError(w, http.StatusBadRequest, "need album_artist and album_name")
		return
	}
	if len(body.Tracks) == 0 {
		writeError(w, http.StatusBadRequest, "need a non-empty tracks list")
		return
	}

	request := models.SearchRequest{
		Kind:             models.KindAlbum,
		Query:            fmt.Sprintf("%s %s", body.AlbumArtist, body.AlbumName),
		Artist:           body.AlbumArtist,
		Album:            body.AlbumName,
		Year:             body.Year,
		Tracks:           body.Tracks,
		FormatPreference: normalizeFormat(body.FormatPreference),
		AutoDownload:     defaultTrue(body.AutoDownload),
		MetadataOverride: defaultTrue(body.MetadataOverride),
	}

	stored, err := s.queue.Append(request)
	if err != nil {
		s.logger.Error("queue append failed", "error", err)
		writeError(w, http.StatusInternalServerError, "queue write failed")
		return
	}

	s.metrics.searches.Inc()
	s.metrics.events.Inc()
	s.events.Add(models.EventInfo,
		fmt.Sprintf("Queued album: %s - %s (%d tracks)", stored.Artist, stored.Album, len(stored.Tracks)), "")

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "search_id": stored.SearchID})
}

func normalizeFormat(pref models.FormatPreference) models.FormatPreference {
	if pref == models.FormatFLAC {
		return models.FormatFLAC
	}
	return models.FormatMP3
}

func (s *Server) handlePending(w http.ResponseWriter, req *http.Request) {
	pending, err := s.queue.Unprocessed()
	if err != nil {
		s.logger.Error("queue read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "queue read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": pending})
}

type markProcessedBody struct {
	Timestamp string  `json:"timestamp"`
	SearchIDs []int64 `json:"search_ids"`
}

func (s *Server) handleMarkProcessed(w http.ResponseWriter, req *http.Request) {
	var body markProcessedBody
	if !decode(w, req, &body) {
		return
	}

	var err error
	switch {
	case len(body.SearchIDs) > 0:
		_, err = s.queue.MarkProcessedByIDs(body.SearchIDs)
	case body.Timestamp != "":
		var ts time.Time
		ts, err = time.Parse(time.RFC3339Nano, body.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp is not RFC3339")
			return
		}
		_, err = s.queue.MarkProcessedByTimestamp(ts)
	default:
		writeError(w, http.StatusBadRequest, "need timestamp or search_ids")
		return
	}

	if err != nil {
		s.logger.Error("mark-processed failed", "error", err)
		writeError(w, http.StatusInternalServerError, "queue write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type progressBody struct {
	TrackID    string  `json:"track_id"`
	Filename   string  `json:"filename"`
	Percent    float64 `json:"percent"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
}

// handleProgress is fire-and-forget: the update is enqueued for the apply
// loop before the reply is written, so per-track order is arrival order,
// and the reply never waits on the table.
func (s *Server) handleProgress(w http.ResponseWriter, req *http.Request) {
	var body progressBody
	if !decode(w, req, &body) {
		return
	}
	if body.TrackID == "" {
		writeError(w, http.StatusBadRequest, "need track_id")
		return
	}

	s.enqueue(func() {
		s.progress.Update(body.TrackID, body.Filename, body.Percent, body.BytesDone, body.BytesTotal)
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRemoveProgress(w http.ResponseWriter, req *http.Request) {
	var body struct {
		TrackID string `json:"track_id"`
	}
	if !decode(w, req, &body) {
		return
	}

	s.enqueue(func() { s.progress.Remove(body.TrackID) })
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearProgress(w http.ResponseWriter, req *http.Request) {
	cleared := s.progress.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": cleared})
}

type eventBody struct {
	Type    models.EventType `json:"type"`
	Message string           `json:"message"`
	TrackID string           `json:"track_id"`
}

func (s *Server) handleEvent(w http.ResponseWriter, req *http.Request) {
	var body eventBody
	if !decode(w, req, &body) {
		return
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "need message")
		return
	}

	typ := body.Type
	switch typ {
	case models.EventInfo, models.EventSuccess, models.EventWarning, models.EventError:
	default:
		typ = models.EventInfo
	}

	s.enqueue(func() {
		s.metrics.events.Inc()
		s.events.Add(typ, body.Message, body.TrackID)
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type credentialsBody struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, req *http.Request) {
	var body credentialsBody
	if !decode(w, req, &body) {
		return
	}
	if body.ClientID == "" || body.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "need client_id and client_secret")
		return
	}

	creds := models.Credentials{ClientID: body.ClientID, ClientSecret: body.ClientSecret}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	s.saveCredentials(creds)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleTestCredentials only checks presence; the worker owns the real
// token round-trip because the state plane does no external network I/O.
func (s *Server) handleTestCredentials(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": s.Credentials().Valid()})
}

// handleSetRenamePattern replaces both patterns; an empty field falls back
// to the default rather than keeping the previous value.
func (s *Server) handleSetRenamePattern(w http.ResponseWriter, req *http.Request) {
	var body models.RenamePattern
	if !decode(w, req, &body) {
		return
	}

	defaults := models.DefaultRenamePattern()
	if body.SingleTrack == "" {
		body.SingleTrack = defaults.SingleTrack
	}
	if body.AlbumTrack == "" {
		body.AlbumTrack = defaults.AlbumTrack
	}

	s.mu.Lock()
	s.pattern = body
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetDebugMode(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	debug := s.debug
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"debug_windows": debug.DebugWindows})
}

func (s *Server) handleSetDebugMode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		DebugWindows bool `json:"debug_windows"`
	}
	if !decode(w, req, &body) {
		return
	}

	settings := models.DebugSettings{DebugWindows: body.DebugWindows}
	s.mu.Lock()
	s.debug = settings
	s.mu.Unlock()
	s.saveDebugSettings(settings)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRestart(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
	s.logger.Info("restart requested; exiting shortly")
	time.AfterFunc(restartDelay, s.Shutdown)
}
