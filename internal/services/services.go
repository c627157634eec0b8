// package services contains clients for the external metadata providers
package services

import (
	"context"

	"github.com/hydraplus/hydra/internal/models"
)

// MetadataService resolves authoritative metadata for a streaming-service
// track. Every method degrades gracefully: a failed lookup yields zero
// values, never a hard error the pipeline must handle.
type MetadataService interface {
	// Name identifies the provider in logs and events.
	Name() string

	// ScrapeTrackPage extracts release year, track number and cover image
	// URL from the provider's public track page. No credentials required.
	ScrapeTrackPage(ctx context.Context, trackID string) models.TrackMetadata

	// FetchTrackDetails resolves genre and label through the credentialed
	// API. Returns zero values when credentials are absent or the upstream
	// fails.
	FetchTrackDetails(ctx context.Context, trackID string) models.TrackMetadata

	// DownloadImage fetches a cover image by URL.
	DownloadImage(ctx context.Context, url string) ([]byte, error)

	// SetCredentials installs a client-credentials pair, invalidating any
	// cached token.
	SetCredentials(creds models.Credentials)

	// HasCredentials reports whether a credentials pair is installed.
	HasCredentials() bool

	// Verify performs a token round-trip to prove the credentials work.
	Verify(ctx context.Context) error
}
