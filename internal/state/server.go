// package state implements the loopback state service
//
// The state service is the state plane: it owns the queue, the event log,
// the progress table, credentials and rename patterns, and it never performs
// heavy I/O on a request path. Its survival is the load-bearing property
// that keeps progress bars visible even if the worker dies.
package state

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydraplus/hydra/internal/eventlog"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/progress"
	"github.com/hydraplus/hydra/internal/queue"
	"github.com/hydraplus/hydra/internal/shared"
)

const (
	// cleanupInterval drives the periodic expiry of progress entries,
	// events and processed queue entries.
	cleanupInterval = 60 * time.Second
	// restartDelay gives /restart time to flush its reply before exit.
	restartDelay = 500 * time.Millisecond
	// updateBuffer sizes the fire-and-forget apply channel. Enqueueing
	// happens before the HTTP reply so per-track arrival order holds.
	updateBuffer = 1024
)

const (
	queueFile       = "nicotine-queue.json"
	credentialsFile = "spotify-credentials.json"
	debugFile       = "debug-settings.json"
)

// Server is the state service. All mutable state lives behind its mutex or
// inside the single-goroutine apply loop.
type Server struct {
	logger   *log.Logger
	queue    *queue.Store
	events   *eventlog.Log
	progress *progress.Table
	metrics  *metrics

	dataDir  string
	instance string
	started  time.Time

	mu      sync.Mutex
	creds   models.Credentials
	pattern models.RenamePattern
	debug   models.DebugSettings

	updates chan func()

	// Shutdown is invoked by /restart after the reply is flushed. The
	// default exits the process; tests replace it.
	Shutdown func()
}

// NewServer creates a state service rooted at dataDir, loading persisted
// credentials and debug settings when present.
func NewServer(dataDir string, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	s := &Server{
		logger:   shared.WithLogger(logger, "service", "state"),
		queue:    queue.NewStore(filepath.Join(dataDir, queueFile)),
		events:   eventlog.New(),
		progress: progress.NewTable(),
		metrics:  newMetrics(),
		dataDir:  dataDir,
		instance: uuid.New().String(),
		started:  time.Now(),
		pattern:  models.DefaultRenamePattern(),
		updates:  make(chan func(), updateBuffer),
		Shutdown: func() { os.Exit(0) },
	}

	s.loadCredentials()
	s.loadDebugSettings()

	go s.applyLoop()
	return s, nil
}

// applyLoop drains the fire-and-forget updates in arrival order.
func (s *Server) applyLoop() {
	for apply := range s.updates {
		apply()
	}
}

// enqueue hands an update to the apply loop. Called before the HTTP reply
// is written, so updates for one track_id apply in arrival order. A full
// buffer blocks the caller; applying inline would run the update ahead of
// earlier queued ones for the same track.
func (s *Server) enqueue(apply func()) {
	select {
	case s.updates <- apply:
	default:
		s.metrics.applyOverflow.Inc()
		s.updates <- apply
	}
}

// Handler builds the chi router with CORS, panic recovery and all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(s.recoverer)
	r.Use(s.countRequests)

	r.Get("/ping", s.handlePing)
	r.Get("/status", s.handleStatus)
	r.Get("/pending", s.handlePending)
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Post("/search", s.handleSearch)
	r.Post("/search-album", s.handleSearchAlbum)
	r.Post("/mark-processed", s.handleMarkProcessed)
	r.Post("/progress", s.handleProgress)
	r.Post("/remove-progress", s.handleRemoveProgress)
	r.Post("/clear-progress", s.handleClearProgress)
	r.Post("/event", s.handleEvent)
	r.Post("/set-spotify-credentials", s.handleSetCredentials)
	r.Post("/test-spotify-credentials", s.handleTestCredentials)
	r.Post("/set-rename-pattern", s.handleSetRenamePattern)
	r.Get("/get-debug-mode", s.handleGetDebugMode)
	r.Post("/set-debug-mode", s.handleSetDebugMode)
	r.Post("/restart", s.handleRestart)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "unknown path")
	})
	return r
}

// CleanupLoop expires stale state every minute until ctx is done.
func (s *Server) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runCleanup(now)
		}
	}
}

func (s *Server) runCleanup(now time.Time) {
	if removed := s.progress.Cleanup(now); removed > 0 {
		s.logger.Debug("progress entries evicted", "count", removed)
	}
	s.events.Cleanup(now)
	if removed, err := s.queue.Cleanup(now); err != nil {
		s.logger.Warn("queue cleanup failed", "error", err)
	} else if removed > 0 {
		s.logger.Debug("processed queue entries purged", "count", removed)
	}
}

// Credentials returns the current Spotify credentials.
func (s *Server) Credentials() models.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// RenamePattern returns the current rename patterns.
func (s *Server) RenamePattern() models.RenamePattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

func (s *Server) loadCredentials() {
	data, err := os.ReadFile(filepath.Join(s.dataDir, credentialsFile))
	if err != nil {
		return
	}
	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		s.logger.Warn("credentials file unreadable", "error", err)
		return
	}
	s.creds = creds
}

// saveCredentials persists best-effort; a write failure is logged, not fatal.
func (s *Server) saveCredentials(creds models.Credentials) {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(s.dataDir, credentialsFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		s.logger.Warn("persisting credentials failed", "error", err)
	}
}

func (s *Server) loadDebugSettings() {
	data, err := os.ReadFile(filepath.Join(s.dataDir, debugFile))
	if err != nil {
		return
	}
	var settings models.DebugSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return
	}
	s.debug = settings
}

func (s *Server) saveDebugSettings(settings models.DebugSettings) {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(s.dataDir, debugFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.logger.Warn("persisting debug settings failed", "error", err)
	}
}

// recoverer turns handler panics into logged 500s; the service never dies
// for a handler bug.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.metrics.panics.Inc()
				s.logger.Error("handler panic", "path", req.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.metrics.requests.WithLabelValues(req.Method, req.URL.Path).Inc()
		next.ServeHTTP(w, req)
	})
}
