// Spotify implementation of [MetadataService]
//
// Two lookup paths: an uncredentialed scrape of the public track page and a
// client-credentials API fetch for genre and label. API calls sit behind a
// circuit breaker so a flapping upstream short-circuits to empty metadata.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hydraplus/hydra/internal/models"
	"github.com/hydraplus/hydra/internal/shared"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
	spotifyPageURL  = "https://open.spotify.com/track"

	// perCallTimeout bounds each upstream HTTP call; sequenceTimeout caps
	// the whole credentialed fetch (track + artist).
	perCallTimeout  = 30 * time.Second
	sequenceTimeout = 60 * time.Second

	// maxImageBytes matches the cover cache's single-entry ceiling.
	maxImageBytes = 50 * 1024 * 1024
)

var (
	releaseDateRe = regexp.MustCompile(`<meta\s+(?:property|name)="music:release_date"\s+content="([^"]+)"`)
	trackNumberRe = regexp.MustCompile(`<meta\s+(?:property|name)="music:album:track"\s+content="([^"]+)"`)
	ogImageRe     = regexp.MustCompile(`<meta\s+(?:property|name)="og:image"\s+content="([^"]+)"`)
)

// spotifyTrack is the subset of the track API response the pipeline reads.
type spotifyTrack struct {
	Artists []struct {
		ID string `json:"id"`
	} `json:"artists"`
	Album struct {
		Label string `json:"label"`
	} `json:"album"`
}

// spotifyArtist is the subset of the artist API response the pipeline reads.
type spotifyArtist struct {
	Genres []string `json:"genres"`
}

// SpotifyService implements [MetadataService] against the Spotify Web API
// and the public track pages.
type SpotifyService struct {
	mu     sync.Mutex
	creds  models.Credentials
	tokens oauth2.TokenSource

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *log.Logger

	// overridable in tests
	tokenURL string
	apiURL   string
	pageURL  string
}

// NewSpotifyService creates a SpotifyService. The credentials may be empty;
// the scrape path works without them.
func NewSpotifyService(creds models.Credentials, logger *log.Logger) *SpotifyService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &SpotifyService{
		httpClient: &http.Client{Timeout: perCallTimeout},
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		logger:     shared.WithLogger(logger, "component", "spotify"),
		tokenURL:   spotifyTokenURL,
		apiURL:     spotifyAPIURL,
		pageURL:    spotifyPageURL,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "spotify-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	s.SetCredentials(creds)
	return s
}

func (s *SpotifyService) Name() string { return "Spotify" }

// SetCredentials installs a client-credentials pair and drops any cached token.
func (s *SpotifyService) SetCredentials(creds models.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = creds
	s.tokens = nil
	if creds.Valid() {
		config := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     s.tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		s.tokens = config.TokenSource(context.Background())
	}
}

// HasCredentials reports whether a credentials pair is installed.
func (s *SpotifyService) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Valid()
}

// Verify fetches a token to prove the installed credentials work.
func (s *SpotifyService) Verify(ctx context.Context) error {
	s.mu.Lock()
	tokens := s.tokens
	s.mu.Unlock()

	if tokens == nil {
		return shared.ErrMissingCredentials
	}
	if _, err := tokens.Token(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}
	return nil
}

// ScrapeTrackPage extracts year, track number and image URL from the public
// track page. Each field is optional; extraction failures leave zero values.
func (s *SpotifyService) ScrapeTrackPage(ctx context.Context, trackID string) models.TrackMetadata {
	var meta models.TrackMetadata
	if trackID == "" {
		return meta
	}

	body, err := s.fetchPage(ctx, fmt.Sprintf("%s/%s", s.pageURL, trackID))
	if err != nil {
		s.logger.Warn("track page scrape failed", "track_id", trackID, "error", err)
		return meta
	}

	if m := releaseDateRe.FindSubmatch(body); m != nil {
		date := string(m[1])
		if len(date) >= 4 {
			meta.Year = date[:4]
		}
	}
	if m := trackNumberRe.FindSubmatch(body); m != nil {
		if n, err := strconv.Atoi(string(m[1])); err == nil {
			meta.TrackNumber = n
		}
	}
	if m := ogImageRe.FindSubmatch(body); m != nil {
		meta.ImageURL = string(m[1])
	}

	return meta
}

// FetchTrackDetails resolves genre and label: track fetch yields the first
// artist ID and the album label, artist fetch yields the genres. Any HTTP or
// parse failure yields zero values.
func (s *SpotifyService) FetchTrackDetails(ctx context.Context, trackID string) models.TrackMetadata {
	var meta models.TrackMetadata
	if trackID == "" || !s.HasCredentials() {
		return meta
	}

	ctx, cancel := context.WithTimeout(ctx, sequenceTimeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (any, error) {
		var track spotifyTrack
		if err := s.apiGet(ctx, fmt.Sprintf("/tracks/%s", trackID), &track); err != nil {
			return nil, err
		}

		details := models.TrackMetadata{Label: track.Album.Label}
		if len(track.Artists) > 0 && track.Artists[0].ID != "" {
			var artist spotifyArtist
			if err := s.apiGet(ctx, fmt.Sprintf("/artists/%s", track.Artists[0].ID), &artist); err != nil {
				return nil, err
			}
			details.Genre = strings.Join(artist.Genres, ", ")
		}
		return details, nil
	})
	if err != nil {
		s.logger.Warn("API fetch degraded to empty metadata", "track_id", trackID, "error", err)
		return meta
	}

	return result.(models.TrackMetadata)
}

// DownloadImage fetches a cover image by URL.
func (s *SpotifyService) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty image URL", shared.ErrInvalidInput)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image fetch status %d", shared.ErrUpstream, resp.StatusCode)
	}

	buffer, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	if len(buffer) > maxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", shared.ErrUpstream, maxImageBytes)
	}
	return buffer, nil
}

// fetchPage GETs a public page with a desktop user agent.
func (s *SpotifyService) fetchPage(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: page status %d", shared.ErrUpstream, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// apiGet performs an authenticated GET against the Web API.
func (s *SpotifyService) apiGet(ctx context.Context, endpoint string, result any) error {
	s.mu.Lock()
	tokens := s.tokens
	s.mu.Unlock()
	if tokens == nil {
		return shared.ErrMissingCredentials
	}

	token, err := tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, s.apiURL+endpoint, nil)
	if err != nil {
		return err
	}
	token.SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify API status %d", shared.ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decoding response: %v", shared.ErrUpstream, err)
	}
	return nil
}
