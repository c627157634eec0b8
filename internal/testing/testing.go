// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/hydraplus/hydra/internal/models"
)

// MockMetadata is a test double for [services.MetadataService]. Every field
// is optional; the zero value degrades like a provider with nothing to say.
type MockMetadata struct {
	mu sync.Mutex

	Scraped   models.TrackMetadata
	Detailed  models.TrackMetadata
	Image     []byte
	ImageErr  error
	VerifyErr error

	creds models.Credentials

	ScrapeCalls   []string
	DetailCalls   []string
	DownloadCalls []string
}

func (m *MockMetadata) Name() string { return "mock" }

func (m *MockMetadata) ScrapeTrackPage(ctx context.Context, trackID string) models.TrackMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapeCalls = append(m.ScrapeCalls, trackID)
	return m.Scraped
}

func (m *MockMetadata) FetchTrackDetails(ctx context.Context, trackID string) models.TrackMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetailCalls = append(m.DetailCalls, trackID)
	return m.Detailed
}

func (m *MockMetadata) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadCalls = append(m.DownloadCalls, url)
	return m.Image, m.ImageErr
}

func (m *MockMetadata) SetCredentials(creds models.Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
}

func (m *MockMetadata) HasCredentials() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.Valid()
}

func (m *MockMetadata) Verify(ctx context.Context) error {
	return m.VerifyErr
}

// Credentials returns the last installed pair.
func (m *MockMetadata) Credentials() models.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
