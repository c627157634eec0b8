package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hydraplus/hydra/internal/client"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/organize"
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
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessMetadata renames and moves the file synchronously, acks, and
// leaves the slow work (provider lookups, cover, tags) to the enrichment
// loop. The caller sees the final path immediately. The file phase runs on
// the request FIFO, one request at a time.
func (s *Server) handleProcessMetadata(w http.ResponseWriter, req *http.Request) {
	var body client.ProcessMetadataRequest
	if !decode(w, req, &body) {
		return
	}
	if body.FilePath == "" || body.Artist == "" || body.Track == "" {
		writeError(w, http.StatusBadRequest, "need file_path, artist and track")
		return
	}

	s.runSerialized(func() { s.processFile(w, body) })
}

func (s *Server) processFile(w http.ResponseWriter, body client.ProcessMetadataRequest) {
	if ext := strings.ToLower(filepath.Ext(body.FilePath)); ext != ".mp3" && ext != ".flac" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format: %s", ext))
		return
	}
	if _, err := os.Stat(body.FilePath); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file not found: %s", body.FilePath))
		return
	}

	pattern := s.RenamePattern().SingleTrack
	if body.TrackNumber > 0 {
		pattern = s.RenamePattern().AlbumTrack
	}
	newBase := organize.RenderPattern(pattern, organize.Substitutions{
		Artist:   body.Artist,
		Track:    body.Track,
		Album:    body.Album,
		Year:     body.PrefetchedYear,
		TrackNum: body.TrackNumber,
	})

	path, renamed, err := organize.RenameFile(body.FilePath, newBase)
	if err != nil {
		s.logger.Error("rename failed", "path", body.FilePath, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := client.ProcessMetadataResponse{Success: true, NewPath: path, Renamed: renamed}
	if body.TargetFolder != "" {
		moved, didMove, moveErr := organize.MoveToFolder(path, body.TargetFolder)
		if moveErr != nil {
			// The renamed file stays where it is; report but keep going.
			s.logger.Warn("move failed", "path", path, "folder", body.TargetFolder, "error", moveErr)
			resp.Error = moveErr.Error()
		} else {
			path = moved
			resp.NewPath = moved
			resp.MovedToFolder = didMove
		}
	}

	s.jobs <- enrichJob{request: body, path: path}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnsureAlbumFolder(w http.ResponseWriter, req *http.Request) {
	var body client.EnsureAlbumFolderRequest
	if !decode(w, req, &body) {
		return
	}
	if body.AlbumArtist == "" || body.AlbumName == "" {
		writeError(w, http.StatusBadRequest, "need album_artist and album_name")
		return
	}

	dir := body.DownloadDir
	if dir == "" {
		dir = s.downloadDir
	}
	path, name, err := organize.EnsureAlbumFolder(dir, body.AlbumArtist, body.AlbumName, body.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, client.EnsureAlbumFolderResponse{FolderPath: path, FolderName: name})
}

// handleOrganizeAlbum moves a finished album's tracks into its folder. Moves
// run concurrently; each track reports its own outcome.
func (s *Server) handleOrganizeAlbum(w http.ResponseWriter, req *http.Request) {
	var body client.OrganizeAlbumRequest
	if !decode(w, req, &body) {
		return
	}
	if body.Artist == "" || body.Album == "" {
		writeError(w, http.StatusBadRequest, "need artist and album")
		return
	}
	if len(body.TrackPaths) == 0 {
		writeError(w, http.StatusBadRequest, "need a non-empty track_paths list")
		return
	}

	folder, _, err := organize.EnsureAlbumFolder(s.downloadDir, body.Artist, body.Album, body.Year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]client.OrganizeAlbumResult, len(body.TrackPaths))
	var g errgroup.Group
	g.SetLimit(4)
	for i, path := range body.TrackPaths {
		i, path := i, path
		g.Go(func() error {
			result := client.OrganizeAlbumResult{Path: path}
			newPath, moved, err := organize.MoveToFolder(path, folder)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.NewPath = newPath
				result.Moved = moved
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, client.OrganizeAlbumResponse{FolderPath: folder, Results: results})
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if !decode(w, req, &body) {
		return
	}
	if body.ClientID == "" || body.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "need client_id and client_secret")
		return
	}

	creds := models.Credentials{ClientID: body.ClientID, ClientSecret: body.ClientSecret}
	s.metadata.SetCredentials(creds)
	s.saveCredentials(creds)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleTestCredentials proves the stored pair with a real token round-trip.
func (s *Server) handleTestCredentials(w http.ResponseWriter, req *http.Request) {
	if !s.metadata.HasCredentials() {
		writeJSON(w, http.StatusOK, client.TestCredentialsResponse{
			Success: false, Error: "no credentials stored",
		})
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 30*time.Second)
	defer cancel()

	if err := s.metadata.Verify(ctx); err != nil {
		writeJSON(w, http.StatusOK, client.TestCredentialsResponse{
			Success: false, Error: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, client.TestCredentialsResponse{Success: true})
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

func (s *Server) handleHistory(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	records, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (s *Server) handleRestart(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
	s.logger.Info("restart requested; exiting shortly")
	time.AfterFunc(restartDelay, s.Shutdown)
}
