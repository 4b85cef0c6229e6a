// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
)

// MockSource is a test double for [services.Source]
type MockSource struct {
	Playlist []models.Track
	Err      error
	Refs     []string
}

func (m *MockSource) Tracks(ctx context.Context, ref string) ([]models.Track, error) {
	m.Refs = append(m.Refs, ref)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Playlist, nil
}

func (m *MockSource) Name() string { return "mock" }

// MockBackend is a scripted test double for [services.Backend].
//
// Results maps a search query to the responses returned by successive polls; the last
// response repeats once the script runs out.
type MockBackend struct {
	mu sync.Mutex

	Results    map[string][][]models.Candidate
	SearchErr  map[string]error
	PollErr    error
	EnqueueErr func(job models.DownloadJob) error
	Pending    []models.PendingDownload
	PendingErr error
	CancelErr  map[string]error

	Searches    []string
	Polls       map[string]int
	Enqueued    []models.DownloadJob
	Cancelled   []string
	PendingHits int

	ids map[string]string
}

func (m *MockBackend) Search(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, query)
	if err := m.SearchErr[query]; err != nil {
		return "", err
	}
	if m.ids == nil {
		m.ids = make(map[string]string)
	}
	id := fmt.Sprintf("search-%d", len(m.Searches))
	m.ids[id] = query
	return id, nil
}

func (m *MockBackend) SearchResults(ctx context.Context, searchID string) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Polls == nil {
		m.Polls = make(map[string]int)
	}
	query := m.ids[searchID]
	n := m.Polls[query]
	m.Polls[query]++
	if m.PollErr != nil {
		return nil, m.PollErr
	}
	script := m.Results[query]
	if len(script) == 0 {
		return nil, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func (m *MockBackend) Enqueue(ctx context.Context, job models.DownloadJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		if err := m.EnqueueErr(job); err != nil {
			return err
		}
	}
	m.Enqueued = append(m.Enqueued, job)
	return nil
}

func (m *MockBackend) PendingDownloads(ctx context.Context) ([]models.PendingDownload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingHits++
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	return m.Pending, nil
}

func (m *MockBackend) CancelDownload(ctx context.Context, d models.PendingDownload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CancelErr[d.ID]; err != nil {
		return err
	}
	m.Cancelled = append(m.Cancelled, d.ID)
	return nil
}

func (m *MockBackend) Name() string { return "mock" }

// FakeClock advances only when Sleep is called.
type FakeClock struct {
	Current time.Time
	Slept   []time.Duration
	// OnSleep runs after each sleep with the new time.
	OnSleep func(now time.Time)
}

func NewFakeClock() *FakeClock {
	return &FakeClock{Current: time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time { return c.Current }

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Current = c.Current.Add(d)
	c.Slept = append(c.Slept, d)
	if c.OnSleep != nil {
		c.OnSleep(c.Current)
	}
	return nil
}

// StubTagReader returns canned tags per path and reports everything else as untagged.
type StubTagReader struct {
	Tags map[string]*models.Tags
	Errs map[string]error
}

func (s *StubTagReader) ReadTags(path string) (*models.Tags, error) {
	if err := s.Errs[path]; err != nil {
		return nil, err
	}
	if tags, ok := s.Tags[path]; ok {
		return tags, nil
	}
	return &models.Tags{}, nil
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

// WriteFile creates dir/name (and parents) with content and an optional modification time.
func WriteFile(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Failed to set times on %s: %v", path, err)
		}
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("Path should not exist: %s", path)
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
