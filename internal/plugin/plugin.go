// package plugin coordinates the P2P client against the loopback services
//
// The coordinator runs inside a Soulseek-compatible host. It polls the state
// service for queued requests, drives the host's search and download APIs
// through the SoulseekClient interface, scores incoming results, watches
// transfers for stalls, and hands finished files to the worker service.
package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hydraplus/hydra/internal/client"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/services"
	"github.com/hydraplus/hydra/internal/shared"
)

const (
	// activeInterval applies while any search or download is in flight.
	activeInterval = 2 * time.Second
	// idleInterval applies up to five minutes after the last activity.
	idleInterval = 10 * time.Second
	// sleepInterval applies after five minutes without activity.
	sleepInterval = 30 * time.Second
	// idleWindow and sleepWindow bound the adaptive intervals above.
	idleWindow  = 30 * time.Second
	sleepWindow = 5 * time.Minute

	// monitorInterval is the cadence of the download monitor.
	monitorInterval = 2 * time.Second
)

// TransferStatus is the host's view of one transfer.
type TransferStatus struct {
	Exists     bool
	Finished   bool
	BytesDone  int64
	BytesTotal int64
	// FinalPath is the local path of the downloaded file, set once Finished.
	FinalPath string
}

// SoulseekClient is the surface the host process exposes to the coordinator.
// Implementations must not call back into the Coordinator from within these
// methods.
type SoulseekClient interface {
	// StartSearch issues a network search and returns the host's token.
	StartSearch(query string) (int, error)

	// QueueDownload requests the transfer of one remote file.
	QueueDownload(peer, virtualPath string, sizeBytes int64) error

	// AbortDownload cancels a transfer. Best-effort.
	AbortDownload(peer, virtualPath string) error

	// TransferState reports the current state of a transfer.
	TransferState(peer, virtualPath string) TransferStatus
}

// SearchResult is one file offered by a peer in response to a search.
type SearchResult struct {
	Peer        string
	VirtualPath string
	SizeBytes   int64
	Bitrate     int
	Duration    float64 // seconds
}

// Options configures a Coordinator.
type Options struct {
	StateURL  string
	WorkerURL string
	Soulseek  SoulseekClient
	// Metadata is optional; when present, album batches prefetch year and
	// cover URL once instead of scraping per track.
	Metadata services.MetadataService
	Logger   *log.Logger
}

// Coordinator owns the plugin-side state: active searches, the download
// correlation map, and per-album shared context.
type Coordinator struct {
	logger *log.Logger
	state  *client.StateClient
	worker *client.WorkerClient
	slsk   SoulseekClient
	meta   services.MetadataService

	mu           sync.Mutex
	searches     map[int]*activeSearch
	downloads    map[string]int // virtual_path -> search token
	albums       map[int64]*albumContext
	lastActivity time.Time

	now func() time.Time
}

// New creates a Coordinator. Call Run to start the poll and monitor loops;
// the host feeds results in through OnSearchResult and OnTransferFinished.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Coordinator{
		logger:    shared.WithLogger(logger, "service", "plugin"),
		state:     client.NewStateClient(opts.StateURL),
		worker:    client.NewWorkerClient(opts.WorkerURL),
		slsk:      opts.Soulseek,
		meta:      opts.Metadata,
		searches:  make(map[int]*activeSearch),
		downloads: make(map[string]int),
		albums:    make(map[int64]*albumContext),
		now:       time.Now,
	}
}

// Run polls the state service at the adaptive interval and drives the
// download monitor until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()
	monitor := time.NewTicker(monitorInterval)
	defer monitor.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTimer.C:
			c.poll(ctx)
			pollTimer.Reset(c.pollInterval())
		case now := <-monitor.C:
			c.tick(ctx, now)
		}
	}
}

// pollInterval picks the adaptive interval from the activity state.
func (c *Coordinator) pollInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.searches) > 0 || len(c.downloads) > 0 {
		return activeInterval
	}
	since := c.now().Sub(c.lastActivity)
	switch {
	case since < idleWindow:
		return activeInterval
	case since < sleepWindow:
		return idleInterval
	default:
		return sleepInterval
	}
}

// poll fetches unprocessed requests, starts searches for them, and marks
// them processed. Marking is at-least-once; the state side is idempotent.
func (c *Coordinator) poll(ctx context.Context) {
	pending, err := c.state.Pending(ctx)
	if err != nil {
		c.logger.Warn("pending fetch failed", "error", err)
		return
	}

	for _, req := range pending {
		if err := c.admit(req); err != nil {
			c.logger.Warn("search start failed", "search_id", req.SearchID, "error", err)
			continue
		}
		if err := c.state.MarkProcessedByIDs(ctx, []int64{req.SearchID}); err != nil {
			// Re-delivered next poll; admit tolerates the duplicate searches.
			c.logger.Warn("mark-processed failed", "search_id", req.SearchID, "error", err)
		}
	}
}

// admit starts the host searches for one queued request. Album requests fan
// out to one search per track, all sharing the album context.
func (c *Coordinator) admit(req models.SearchRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = c.now()

	if req.Kind == models.KindAlbum {
		c.albums[req.SearchID] = &albumContext{
			artist: req.Artist,
			album:  req.Album,
			year:   req.Year,
			refs:   len(req.Tracks),
		}
		for _, track := range req.Tracks {
			query := fmt.Sprintf("%s %s", track.Artist, track.Track)
			token, err := c.slsk.StartSearch(query)
			if err != nil {
				return err
			}
			c.searches[token] = &activeSearch{
				token:        token,
				searchID:     req.SearchID,
				albumKey:     req.SearchID,
				query:        query,
				artist:       track.Artist,
				track:        track.Track,
				album:        req.Album,
				trackID:      track.TrackID,
				trackNumber:  track.TrackNumber,
				duration:     float64(track.Duration),
				format:       req.FormatPreference,
				autoDownload: req.AutoDownload,
				attempt:      -1,
				startedAt:    c.now(),
			}
		}
		return nil
	}

	token, err := c.slsk.StartSearch(req.Query)
	if err != nil {
		return err
	}
	c.searches[token] = &activeSearch{
		token:        token,
		searchID:     req.SearchID,
		query:        req.Query,
		artist:       req.Artist,
		track:        req.Track,
		album:        req.Album,
		trackID:      req.TrackID,
		duration:     float64(req.Duration),
		format:       req.FormatPreference,
		autoDownload: req.AutoDownload,
		attempt:      -1,
		startedAt:    c.now(),
	}
	return nil
}

// OnSearchResult feeds one host search result into the matching active
// search. Results for unknown tokens are dropped.
func (c *Coordinator) OnSearchResult(token int, result SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	as, ok := c.searches[token]
	if !ok {
		return
	}
	c.lastActivity = c.now()

	score := Score(result, ScoreTarget{
		Query:    as.query,
		Duration: as.duration,
		Format:   as.format,
	})
	as.insert(scoredCandidate{SearchResult: result, Score: score})
}
