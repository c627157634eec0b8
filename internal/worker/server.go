// package worker implements the loopback worker service
//
// The worker is the data plane: renames and moves finished downloads,
// resolves metadata from the streaming provider, embeds covers and tags,
// and records completed enrichments. Everything slow happens here so the
// state service never blocks.
package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydraplus/hydra/internal/client"
	"github.com/hydraplus/hydra/internal/covercache"
	"github.com/hydraplus/hydra/internal/history"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/services"
	"github.com/hydraplus/hydra/internal/shared"
)

const (
	// enrichStagger spaces background enrichments so a burst of completed
	// album tracks does not hammer the provider.
	enrichStagger = 500 * time.Millisecond
	// enrichTimeout bounds one full enrichment (scrape, API, cover, tags).
	enrichTimeout = 2 * time.Minute
	// restartDelay gives /restart time to flush its reply before exit.
	restartDelay = 500 * time.Millisecond
	// jobBuffer sizes the enrichment queue; process-metadata acks block
	// only if this many enrichments are already pending.
	jobBuffer = 256
)

const (
	credentialsFile = "spotify-credentials.json"
	historyFile     = "history.db"
)

// Options configures a worker Server.
type Options struct {
	DataDir     string
	DownloadDir string
	Metadata    services.MetadataService
	StateURL    string
	Logger      *log.Logger
}

// Server is the worker service. The HTTP surface stays thin; the single
// enrichment goroutine serializes all provider and tag-write work.
type Server struct {
	logger   *log.Logger
	metadata services.MetadataService
	covers   *covercache.Cache
	history  *history.Store
	state    *client.StateClient
	metrics  *metrics

	dataDir     string
	downloadDir string
	stagger     time.Duration

	mu      sync.Mutex
	pattern models.RenamePattern

	requests chan func()
	reqWG    sync.WaitGroup

	jobs chan enrichJob
	wg   sync.WaitGroup

	// Shutdown is invoked by /restart after the reply is flushed. The
	// default exits the process; tests replace it.
	Shutdown func()
}

// NewServer creates a worker service. Persisted credentials are installed
// into the metadata service before the first request.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	for _, dir := range []string{opts.DataDir, opts.DownloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	hist, err := history.NewStore(filepath.Join(opts.DataDir, historyFile))
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:      shared.WithLogger(logger, "service", "worker"),
		metadata:    opts.Metadata,
		covers:      covercache.New(),
		history:     hist,
		state:       client.NewStateClient(opts.StateURL),
		metrics:     newMetrics(),
		dataDir:     opts.DataDir,
		downloadDir: opts.DownloadDir,
		stagger:     enrichStagger,
		pattern:     models.DefaultRenamePattern(),
		requests:    make(chan func()),
		jobs:        make(chan enrichJob, jobBuffer),
		Shutdown:    func() { os.Exit(0) },
	}

	if creds, ok := s.loadCredentials(); ok {
		s.metadata.SetCredentials(creds)
	}

	s.reqWG.Add(1)
	go s.requestLoop()
	s.wg.Add(1)
	go s.enrichLoop()
	return s, nil
}

// Close stops the request and enrichment loops after draining queued work
// and releases the history store. The request loop goes first; it is the
// only producer feeding the enrichment queue.
func (s *Server) Close() error {
	close(s.requests)
	s.reqWG.Wait()
	close(s.jobs)
	s.wg.Wait()
	return s.history.Close()
}

// requestLoop drains the file-processing FIFO. One request completes its
// rename and move before the next is dispatched, so collision suffixes
// assigned by stat-then-rename cannot race each other.
func (s *Server) requestLoop() {
	defer s.reqWG.Done()
	for fn := range s.requests {
		fn()
	}
}

// runSerialized executes fn on the request goroutine and waits for it.
// Panics resurface on the caller's goroutine where the recoverer handles
// them.
func (s *Server) runSerialized(fn func()) {
	done := make(chan struct{})
	var rec any
	s.requests <- func() {
		defer close(done)
		defer func() { rec = recover() }()
		fn()
	}
	<-done
	if rec != nil {
		panic(rec)
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
	r.Get("/history", s.handleHistory)
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP)

	r.Post("/process-metadata", s.handleProcessMetadata)
	r.Post("/ensure-album-folder", s.handleEnsureAlbumFolder)
	r.Post("/organize-album", s.handleOrganizeAlbum)
	r.Post("/set-spotify-credentials", s.handleSetCredentials)
	r.Post("/test-spotify-credentials", s.handleTestCredentials)
	r.Post("/set-rename-pattern", s.handleSetRenamePattern)
	r.Post("/restart", s.handleRestart)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "unknown path")
	})
	return r
}

// CleanupLoop expires cover-cache entries every minute until ctx is done.
func (s *Server) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.covers.Cleanup(now)
		}
	}
}

// WatchCredentials reloads the credentials file when another process (the
// state service, or the user editing it) rewrites it. Blocks until ctx is
// done.
func (s *Server) WatchCredentials(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dataDir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != credentialsFile {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if creds, ok := s.loadCredentials(); ok {
				s.metadata.SetCredentials(creds)
				s.logger.Info("credentials reloaded from disk")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("credentials watcher error", "error", err)
		}
	}
}

// RenamePattern returns the current rename patterns.
func (s *Server) RenamePattern() models.RenamePattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

func (s *Server) loadCredentials() (models.Credentials, bool) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, credentialsFile))
	if err != nil {
		return models.Credentials{}, false
	}
	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		s.logger.Warn("credentials file unreadable", "error", err)
		return models.Credentials{}, false
	}
	return creds, creds.Valid()
}

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
