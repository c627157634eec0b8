// package client provides typed HTTP clients for the two loopback services
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hydraplus/hydra/internal/shared"
)

// httpTimeout bounds every loopback call. Both services answer from memory
// or local disk, so anything slower indicates a wedged peer.
const httpTimeout = 10 * time.Second

type base struct {
	baseURL    string
	httpClient *http.Client
}

func newBase(baseURL string) base {
	return base{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// postJSON sends body as JSON and decodes the reply into result when non-nil.
func (b base) postJSON(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, result)
}

// getJSON fetches path and decodes the reply into result when non-nil.
func (b base) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	return b.do(req, result)
}

func (b base) do(req *http.Request, result any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case resp.StatusCode >= 400:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%w: %s", shared.ErrInvalidInput, e.Error)
		}
		return fmt.Errorf("%w: status %d", shared.ErrUpstream, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
