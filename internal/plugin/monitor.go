package plugin

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hydraplus/hydra/internal/client"
	"github.com/hydraplus/hydra/internal/models"
)

const (
	// earlyTriggerDelay is when a clearly good candidate downloads without
	// waiting for more results. The threshold is strict: score 100 waits,
	// 101 goes.
	earlyTriggerDelay = 15 * time.Second
	earlyScoreFloor   = 100
	// lateTriggerDelay is when the best candidate downloads if it is at
	// least plausible; below the floor the search is dropped.
	lateTriggerDelay = 30 * time.Second
	lateScoreFloor   = 50

	// stallGrace is how long a transfer may move zero bytes before it is
	// considered stuck.
	stallGrace = 60 * time.Second
	// searchCap is the absolute ceiling for one search across all attempts.
	searchCap = 5 * time.Minute
	// maxAttempts bounds the fallback chain through the candidate list.
	maxAttempts = 5
	// maxCandidates is how many top-scored results a search retains.
	maxCandidates = 5
)

// scoredCandidate is one retained search result.
type scoredCandidate struct {
	SearchResult
	Score int
}

// activeSearch is the coordinator-local state of one in-flight search.
type activeSearch struct {
	token        int
	searchID     int64
	albumKey     int64 // parent album search_id; zero for singles
	query        string
	artist       string
	track        string
	album        string
	trackID      string
	trackNumber  int
	duration     float64
	format       models.FormatPreference
	autoDownload bool

	candidates []scoredCandidate // sorted by score, descending, ≤ maxCandidates
	attempt    int               // -1 until the first download starts
	startedAt  time.Time

	downloading     *scoredCandidate
	downloadStarted time.Time
	lastBytes       int64
	lastBytesMoved  time.Time
}

// insert places cand into the sorted top-N list.
func (as *activeSearch) insert(cand scoredCandidate) {
	pos := len(as.candidates)
	for i, existing := range as.candidates {
		if cand.Score > existing.Score {
			pos = i
			break
		}
	}
	as.candidates = append(as.candidates, scoredCandidate{})
	copy(as.candidates[pos+1:], as.candidates[pos:])
	as.candidates[pos] = cand
	if len(as.candidates) > maxCandidates {
		as.candidates = as.candidates[:maxCandidates]
	}
}

func (as *activeSearch) best() *scoredCandidate {
	if len(as.candidates) == 0 {
		return nil
	}
	return &as.candidates[0]
}

func (as *activeSearch) label() string {
	return fmt.Sprintf("%s - %s", as.artist, as.track)
}

// tick runs one monitor pass: download triggers for searches still waiting,
// stall and cap checks for active downloads. Host and HTTP side effects are
// collected under the lock and executed after it is released.
func (c *Coordinator) tick(ctx context.Context, now time.Time) {
	var actions []func()

	c.mu.Lock()
	for _, as := range c.searches {
		if as.downloading == nil {
			c.evaluateTriggersLocked(as, now, &actions)
		} else {
			c.monitorDownloadLocked(ctx, as, now, &actions)
		}
	}
	c.mu.Unlock()

	for _, fn := range actions {
		fn()
	}
}

func (c *Coordinator) evaluateTriggersLocked(as *activeSearch, now time.Time, actions *[]func()) {
	elapsed := now.Sub(as.startedAt)

	if !as.autoDownload {
		// Search-only mode: the user picks a result in the host UI.
		if elapsed >= lateTriggerDelay {
			c.dropSearchLocked(as)
		}
		return
	}

	best := as.best()
	switch {
	case best != nil && elapsed >= earlyTriggerDelay && best.Score > earlyScoreFloor:
		c.startDownloadLocked(as, now, actions)
	case elapsed >= lateTriggerDelay:
		if best != nil && best.Score > lateScoreFloor {
			c.startDownloadLocked(as, now, actions)
		} else {
			c.logger.Info("no suitable candidate", "search", as.label())
			c.dropSearchLocked(as)
		}
	}
}

// startDownloadLocked advances to the next candidate and queues its transfer.
func (c *Coordinator) startDownloadLocked(as *activeSearch, now time.Time, actions *[]func()) {
	as.attempt++
	if as.attempt >= maxAttempts || as.attempt >= len(as.candidates) {
		c.failSearchLocked(as, "no working candidates", actions)
		return
	}

	cand := as.candidates[as.attempt]
	as.downloading = &cand
	as.downloadStarted = now
	as.lastBytes = 0
	as.lastBytesMoved = now
	c.downloads[cand.VirtualPath] = as.token
	c.lastActivity = now

	label := as.label()
	trackID := as.trackID
	*actions = append(*actions, func() {
		if err := c.slsk.QueueDownload(cand.Peer, cand.VirtualPath, cand.SizeBytes); err != nil {
			c.logger.Warn("queue download failed", "path", cand.VirtualPath, "error", err)
		}
		_ = c.state.EmitEvent(context.Background(), models.EventInfo,
			fmt.Sprintf("Downloading: %s", label), trackID)
	})
}

func (c *Coordinator) monitorDownloadLocked(ctx context.Context, as *activeSearch, now time.Time, actions *[]func()) {
	cand := *as.downloading
	status := c.slsk.TransferState(cand.Peer, cand.VirtualPath)

	if status.Finished {
		delete(c.downloads, cand.VirtualPath)
		delete(c.searches, as.token)
		search := as
		final := status.FinalPath
		*actions = append(*actions, func() {
			c.finishTransfer(ctx, search, final)
			c.releaseAlbum(search.albumKey)
		})
		return
	}

	if now.Sub(as.startedAt) > searchCap {
		c.abortTransferLocked(cand, actions)
		c.failSearchLocked(as, "search timed out", actions)
		return
	}

	if status.BytesDone > as.lastBytes {
		as.lastBytes = status.BytesDone
		as.lastBytesMoved = now
		c.lastActivity = now
	}

	stuck := !status.Exists || now.Sub(as.lastBytesMoved) > stallGrace
	if stuck {
		c.abortTransferLocked(cand, actions)
		delete(c.downloads, cand.VirtualPath)
		as.downloading = nil

		label := as.label()
		trackID := as.trackID
		*actions = append(*actions, func() {
			_ = c.state.EmitEvent(context.Background(), models.EventWarning,
				fmt.Sprintf("Download stalled, trying next candidate: %s", label), trackID)
		})
		c.startDownloadLocked(as, now, actions)
		return
	}

	if as.trackID != "" && status.BytesTotal > 0 {
		percent := float64(status.BytesDone) * 100 / float64(status.BytesTotal)
		trackID := as.trackID
		filename := path.Base(cand.VirtualPath)
		done, total := status.BytesDone, status.BytesTotal
		*actions = append(*actions, func() {
			_ = c.state.ReportProgress(context.Background(), trackID, filename, percent, done, total)
		})
	}
}

func (c *Coordinator) abortTransferLocked(cand scoredCandidate, actions *[]func()) {
	*actions = append(*actions, func() {
		if err := c.slsk.AbortDownload(cand.Peer, cand.VirtualPath); err != nil {
			c.logger.Debug("abort failed", "path", cand.VirtualPath, "error", err)
		}
	})
}

// failSearchLocked removes the search and reports the terminal failure.
func (c *Coordinator) failSearchLocked(as *activeSearch, reason string, actions *[]func()) {
	c.dropSearchLocked(as)

	label := as.label()
	trackID := as.trackID
	*actions = append(*actions, func() {
		_ = c.state.EmitEvent(context.Background(), models.EventError,
			fmt.Sprintf("Failed: %s (%s)", label, reason), trackID)
		if trackID != "" {
			_ = c.state.RemoveProgress(context.Background(), trackID)
		}
	})
}

func (c *Coordinator) dropSearchLocked(as *activeSearch) {
	if as.downloading != nil {
		delete(c.downloads, as.downloading.VirtualPath)
	}
	delete(c.searches, as.token)
	c.releaseAlbumLocked(as.albumKey)
}

// OnTransferFinished tells the coordinator a download completed at localPath.
// Hosts with completion callbacks call this directly; the monitor reaches the
// same path through TransferState.
func (c *Coordinator) OnTransferFinished(virtualPath, localPath string) {
	c.mu.Lock()
	token, ok := c.downloads[virtualPath]
	if !ok {
		c.mu.Unlock()
		return
	}
	as := c.searches[token]
	delete(c.downloads, virtualPath)
	delete(c.searches, token)
	c.lastActivity = c.now()
	c.mu.Unlock()

	if as != nil {
		c.finishTransfer(context.Background(), as, localPath)
		c.releaseAlbum(as.albumKey)
	}
}

// finishTransfer hands a completed file to the worker. Album tracks resolve
// their shared context first so every track carries the same folder and
// prefetched metadata.
func (c *Coordinator) finishTransfer(ctx context.Context, as *activeSearch, localPath string) {
	req := client.ProcessMetadataRequest{
		FilePath:         localPath,
		Artist:           as.artist,
		Track:            as.track,
		Album:            as.album,
		TrackID:          as.trackID,
		TrackNumber:      as.trackNumber,
		FormatPreference: as.format,
	}

	if as.albumKey != 0 {
		folder, year, imageURL := c.albumInfo(ctx, as.albumKey, as.trackID)
		req.TargetFolder = folder
		req.PrefetchedYear = year
		req.PrefetchedImageURL = imageURL
	}

	if as.trackID != "" {
		_ = c.state.ReportProgress(ctx, as.trackID, path.Base(localPath), 100, 0, 0)
	}

	if _, err := c.worker.ProcessMetadata(ctx, req); err != nil {
		c.logger.Error("process-metadata failed", "path", localPath, "error", err)
		_ = c.state.EmitEvent(ctx, models.EventError,
			fmt.Sprintf("Failed: %s (%v)", as.label(), err), as.trackID)
	}
}

// albumContext is the once-per-album shared state: the target folder and the
// prefetched metadata every track reuses. refs counts the album's tracks
// still in flight; the context is dropped when the last one releases it.
type albumContext struct {
	artist string
	album  string
	year   string
	refs   int

	once     sync.Once
	folder   string
	imageURL string
}

// releaseAlbum drops one reference to an album context, deleting it when
// the last in-flight track has let go.
func (c *Coordinator) releaseAlbum(key int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseAlbumLocked(key)
}

func (c *Coordinator) releaseAlbumLocked(key int64) {
	if key == 0 {
		return
	}
	album := c.albums[key]
	if album == nil {
		return
	}
	album.refs--
	if album.refs <= 0 {
		delete(c.albums, key)
	}
}

// albumInfo resolves the album folder and prefetched metadata exactly once
// per album; the folder creation and the metadata scrape run concurrently.
func (c *Coordinator) albumInfo(ctx context.Context, albumKey int64, trackID string) (folder, year, imageURL string) {
	c.mu.Lock()
	album := c.albums[albumKey]
	c.mu.Unlock()
	if album == nil {
		return "", "", ""
	}

	album.once.Do(func() {
		var g errgroup.Group
		g.Go(func() error {
			resp, err := c.worker.EnsureAlbumFolder(ctx, client.EnsureAlbumFolderRequest{
				AlbumArtist: album.artist,
				AlbumName:   album.album,
				Year:        album.year,
			})
			if err != nil {
				c.logger.Warn("ensure-album-folder failed", "album", album.album, "error", err)
				return nil
			}
			album.folder = resp.FolderPath
			return nil
		})
		if c.meta != nil && trackID != "" {
			g.Go(func() error {
				scraped := c.meta.ScrapeTrackPage(ctx, trackID)
				if album.year == "" {
					album.year = scraped.Year
				}
				album.imageURL = scraped.ImageURL
				return nil
			})
		}
		_ = g.Wait()
	})

	return album.folder, album.year, album.imageURL
}
