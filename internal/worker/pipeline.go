package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hydraplus/hydra/internal/client"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/tags"
)

// enrichJob is one queued background enrichment. The file has already been
// renamed and moved; path is its final location.
type enrichJob struct {
	request client.ProcessMetadataRequest
	path    string
}

// enrichLoop drains the job queue one enrichment at a time, pausing between
// jobs so album batches spread their provider traffic.
func (s *Server) enrichLoop() {
	defer s.wg.Done()

	for job := range s.jobs {
		time.Sleep(s.stagger)
		s.runEnrichment(job)
	}
}

// runEnrichment executes one enrichment inside a recover boundary. A panic
// loses one track's tags, never the service.
func (s *Server) runEnrichment(job enrichJob) {
	defer func() {
		if rec := recover(); rec != nil {
			s.metrics.panics.Inc()
			s.metrics.enrichments.WithLabelValues("panic").Inc()
			s.logger.Error("enrichment panic", "path", job.path, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), enrichTimeout)
	defer cancel()

	s.enrich(ctx, job)
}

func (s *Server) enrich(ctx context.Context, job enrichJob) {
	req := job.request
	meta := models.TrackMetadata{
		Year:        req.PrefetchedYear,
		TrackNumber: req.TrackNumber,
		ImageURL:    req.PrefetchedImageURL,
	}

	// Album batches arrive with prefetched year and image; single tracks
	// need the public-page scrape.
	if req.TrackID != "" && (meta.Year == "" || meta.ImageURL == "") {
		scraped := s.metadata.ScrapeTrackPage(ctx, req.TrackID)
		if meta.Year == "" {
			meta.Year = scraped.Year
		}
		if meta.TrackNumber == 0 {
			meta.TrackNumber = scraped.TrackNumber
		}
		if meta.ImageURL == "" {
			meta.ImageURL = scraped.ImageURL
		}
	}

	if req.TrackID != "" && s.metadata.HasCredentials() {
		detailed := s.metadata.FetchTrackDetails(ctx, req.TrackID)
		meta.Genre = detailed.Genre
		meta.Label = detailed.Label
	}

	cover := s.fetchCover(ctx, meta.ImageURL)

	result, err := tags.Write(ctx, tags.Request{
		Path:        job.path,
		Title:       req.Track,
		Artist:      req.Artist,
		Album:       req.Album,
		Year:        meta.Year,
		TrackNumber: meta.TrackNumber,
		Genre:       meta.Genre,
		Label:       meta.Label,
		Cover:       cover,
	})

	label := fmt.Sprintf("%s - %s", req.Artist, req.Track)
	if err != nil {
		s.metrics.tagFailures.Inc()
		s.metrics.enrichments.WithLabelValues("tag_failed").Inc()
		s.logger.Warn("tag write failed", "path", job.path, "error", err)
		_ = s.state.EmitEvent(ctx, models.EventWarning,
			fmt.Sprintf("Metadata write failed: %s", label), req.TrackID)
	} else {
		s.metrics.enrichments.WithLabelValues("ok").Inc()
		_ = s.state.EmitEvent(ctx, models.EventSuccess,
			fmt.Sprintf("Complete: %s", label), req.TrackID)
	}

	if req.TrackID != "" {
		_ = s.state.RemoveProgress(ctx, req.TrackID)
	}

	if recErr := s.history.Record(models.HistoryRecord{
		TrackID:       req.TrackID,
		Artist:        req.Artist,
		Track:         req.Track,
		Album:         req.Album,
		Path:          job.path,
		TagsUpdated:   result.TagsUpdated,
		CoverEmbedded: result.CoverEmbedded,
	}); recErr != nil {
		s.logger.Warn("history write failed", "error", recErr)
	}

	s.logger.Info("enrichment finished",
		"file", filepath.Base(job.path),
		"tags", result.TagsUpdated,
		"cover", result.CoverEmbedded)
}

// fetchCover serves the cover bytes from the cache, falling back to a
// network download. Every track of an album shares one cached entry.
func (s *Server) fetchCover(ctx context.Context, url string) []byte {
	if url == "" || !strings.HasPrefix(url, "http") {
		return nil
	}

	if buf, ok := s.covers.Get(url); ok {
		s.metrics.coverHits.Inc()
		return buf
	}

	s.metrics.coverMisses.Inc()
	buf, err := s.metadata.DownloadImage(ctx, url)
	if err != nil {
		s.logger.Warn("cover download failed", "url", url, "error", err)
		return nil
	}
	s.covers.Put(url, buf)
	return buf
}
