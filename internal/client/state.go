package client

import (
	"context"
	"time"

	"github.com/hydraplus/hydra/internal/models"
)

// StateClient talks to the state service on its loopback port.
type StateClient struct {
	base
}

// NewStateClient creates a client for the state service at baseURL
// (e.g. "http://127.0.0.1:3847").
func NewStateClient(baseURL string) *StateClient {
	return &StateClient{newBase(baseURL)}
}

// StatusResponse is the reply of GET /status.
type StatusResponse struct {
	Instance        string                          `json:"instance"`
	Events          []models.Event                  `json:"events"`
	ActiveDownloads map[string]models.ProgressEntry `json:"activeDownloads"`
	UptimeSeconds   float64                         `json:"uptime"`
	Counters        map[string]uint64               `json:"counters"`
}

// Ping checks liveness.
func (c *StateClient) Ping(ctx context.Context) error {
	return c.getJSON(ctx, "/ping", nil)
}

// Status fetches the consolidated status document.
func (c *StateClient) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Pending returns the unprocessed queue entries in insertion order.
func (c *StateClient) Pending(ctx context.Context) ([]models.SearchRequest, error) {
	var reply struct {
		Searches []models.SearchRequest `json:"searches"`
	}
	if err := c.getJSON(ctx, "/pending", &reply); err != nil {
		return nil, err
	}
	return reply.Searches, nil
}

// MarkProcessedByTimestamp marks the entry with the given queue timestamp as
// processed. At-least-once delivery; the server side is idempotent.
func (c *StateClient) MarkProcessedByTimestamp(ctx context.Context, ts time.Time) error {
	body := map[string]any{"timestamp": ts.Format(time.RFC3339Nano)}
	return c.postJSON(ctx, "/mark-processed", body, nil)
}

// MarkProcessedByIDs marks the entries with the given search IDs as processed.
func (c *StateClient) MarkProcessedByIDs(ctx context.Context, ids []int64) error {
	body := map[string]any{"search_ids": ids}
	return c.postJSON(ctx, "/mark-processed", body, nil)
}

// ReportProgress posts a download progress update. The server acks before
// applying; callers treat this as fire-and-forget and may discard the error.
func (c *StateClient) ReportProgress(ctx context.Context, trackID, filename string, percent float64, bytesDone, bytesTotal int64) error {
	body := map[string]any{
		"track_id":    trackID,
		"filename":    filename,
		"percent":     percent,
		"bytes_done":  bytesDone,
		"bytes_total": bytesTotal,
	}
	return c.postJSON(ctx, "/progress", body, nil)
}

// RemoveProgress drops the progress entry for trackID. Idempotent.
func (c *StateClient) RemoveProgress(ctx context.Context, trackID string) error {
	return c.postJSON(ctx, "/remove-progress", map[string]string{"track_id": trackID}, nil)
}

// EmitEvent posts a console event. Fire-and-forget like ReportProgress.
func (c *StateClient) EmitEvent(ctx context.Context, typ models.EventType, message, trackID string) error {
	body := map[string]string{
		"type":     string(typ),
		"message":  message,
		"track_id": trackID,
	}
	return c.postJSON(ctx, "/event", body, nil)
}
