package client

import (
	"context"

	"github.com/hydraplus/hydra/internal/models"
)

// WorkerClient talks to the worker service on its loopback port.
type WorkerClient struct {
	base
}

// NewWorkerClient creates a client for the worker service at baseURL
// (e.g. "http://127.0.0.1:3848").
func NewWorkerClient(baseURL string) *WorkerClient {
	return &WorkerClient{newBase(baseURL)}
}

// ProcessMetadataRequest is the body of POST /process-metadata.
// PrefetchedYear and PrefetchedImageURL let album batches amortize the
// network cost of metadata resolution across tracks.
type ProcessMetadataRequest struct {
	FilePath           string                  `json:"file_path"`
	Artist             string                  `json:"artist"`
	Track              string                  `json:"track"`
	Album              string                  `json:"album,omitempty"`
	TrackID            string                  `json:"track_id,omitempty"`
	TrackNumber        int                     `json:"track_number,omitempty"`
	PrefetchedYear     string                  `json:"prefetched_year,omitempty"`
	PrefetchedImageURL string                  `json:"prefetched_image_url,omitempty"`
	TargetFolder       string                  `json:"target_folder,omitempty"`
	FormatPreference   models.FormatPreference `json:"format_preference,omitempty"`
}

// ProcessMetadataResponse is the immediate ack; tag and cover work continues
// in the background after this reply.
type ProcessMetadataResponse struct {
	Success       bool   `json:"success"`
	NewPath       string `json:"new_path"`
	Renamed       bool   `json:"renamed"`
	MovedToFolder bool   `json:"moved_to_folder"`
	Error         string `json:"error,omitempty"`
}

// EnsureAlbumFolderRequest is the body of POST /ensure-album-folder.
type EnsureAlbumFolderRequest struct {
	AlbumArtist string `json:"album_artist"`
	AlbumName   string `json:"album_name"`
	Year        string `json:"year,omitempty"`
	DownloadDir string `json:"download_dir,omitempty"`
}

// EnsureAlbumFolderResponse carries the created (or pre-existing) folder.
type EnsureAlbumFolderResponse struct {
	FolderPath string `json:"folder_path"`
	FolderName string `json:"folder_name"`
}

// OrganizeAlbumRequest is the body of POST /organize-album.
type OrganizeAlbumRequest struct {
	TrackPaths []string `json:"track_paths"`
	Artist     string   `json:"artist"`
	Album      string   `json:"album"`
	Year       string   `json:"year,omitempty"`
}

// OrganizeAlbumResult is the per-track outcome of an organize-album call.
type OrganizeAlbumResult struct {
	Path    string `json:"path"`
	NewPath string `json:"new_path,omitempty"`
	Moved   bool   `json:"moved"`
	Error   string `json:"error,omitempty"`
}

// OrganizeAlbumResponse is the reply of POST /organize-album.
type OrganizeAlbumResponse struct {
	FolderPath string                `json:"folder_path"`
	Results    []OrganizeAlbumResult `json:"results"`
}

// TestCredentialsResponse is the reply of POST /test-spotify-credentials.
type TestCredentialsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Ping checks liveness.
func (c *WorkerClient) Ping(ctx context.Context) error {
	return c.getJSON(ctx, "/ping", nil)
}

// ProcessMetadata submits one file for rename, move and background
// enrichment. The reply arrives after rename+move, before any network work.
func (c *WorkerClient) ProcessMetadata(ctx context.Context, req ProcessMetadataRequest) (*ProcessMetadataResponse, error) {
	var resp ProcessMetadataResponse
	if err := c.postJSON(ctx, "/process-metadata", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnsureAlbumFolder creates the album folder when missing.
func (c *WorkerClient) EnsureAlbumFolder(ctx context.Context, req EnsureAlbumFolderRequest) (*EnsureAlbumFolderResponse, error) {
	var resp EnsureAlbumFolderResponse
	if err := c.postJSON(ctx, "/ensure-album-folder", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OrganizeAlbum creates the album folder and moves the given tracks into it.
func (c *WorkerClient) OrganizeAlbum(ctx context.Context, req OrganizeAlbumRequest) (*OrganizeAlbumResponse, error) {
	var resp OrganizeAlbumResponse
	if err := c.postJSON(ctx, "/organize-album", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
