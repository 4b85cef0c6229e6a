// slskd REST API implementation of [Backend]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

const defaultSlskdURL string = "http://127.0.0.1:5030"

type slskdFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	BitRate  int    `json:"bitRate"`
}

type slskdResponse struct {
	Username string      `json:"username"`
	Files    []slskdFile `json:"files"`
}

// SlskdSearch is a search with its aggregated peer responses.
type SlskdSearch struct {
	ID         string          `json:"id"`
	SearchText string          `json:"searchText"`
	State      string          `json:"state"`
	Responses  []slskdResponse `json:"responses"`
}

type slskdTransfer struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	State    string `json:"state"`
}

type slskdTransferDirectory struct {
	Directory string          `json:"directory"`
	Files     []slskdTransfer `json:"files"`
}

// SlskdUserTransfers groups a user's transfers by remote directory.
type SlskdUserTransfers struct {
	Username    string                   `json:"username"`
	Directories []slskdTransferDirectory `json:"directories"`
}

// StatusError is a non-2xx slskd response. It matches [shared.ErrAPIRequest].
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("slskd status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("slskd status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return shared.ErrAPIRequest }

// SlskdService implements [Backend] for a slskd daemon.
type SlskdService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSlskdService creates a client for the slskd instance at baseURL. A timeout of zero
// leaves requests bounded only by their context.
func NewSlskdService(baseURL, apiKey string, timeout time.Duration) *SlskdService {
	if baseURL == "" {
		baseURL = defaultSlskdURL
	}

	return &SlskdService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the service name.
func (s *SlskdService) Name() string {
	return "slskd"
}

func (s *SlskdService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/api/v0"+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Search starts a network-wide search.
//
// Calls POST /api/v0/searches.
func (s *SlskdService) Search(ctx context.Context, query string) (string, error) {
	var search SlskdSearch
	if err := s.doRequest(ctx, http.MethodPost, "/searches", map[string]string{"searchText": query}, &search); err != nil {
		return "", err
	}
	if search.ID == "" {
		return "", fmt.Errorf("%w: search response has no id", shared.ErrAPIRequest)
	}
	return search.ID, nil
}

// SearchResults flattens the responses gathered so far into candidates, peer by peer.
//
// Calls GET /api/v0/searches/{id}?includeResponses=true.
func (s *SlskdService) SearchResults(ctx context.Context, searchID string) ([]models.Candidate, error) {
	var search SlskdSearch
	endpoint := "/searches/" + url.PathEscape(searchID) + "?includeResponses=true"
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &search); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrSearchNotFound, searchID)
		}
		return nil, err
	}

	var candidates []models.Candidate
	for _, r := range search.Responses {
		for _, f := range r.Files {
			candidates = append(candidates, models.Candidate{
				Source:   r.Username,
				Filename: f.Filename,
				Size:     f.Size,
				BitRate:  f.BitRate,
			})
		}
	}
	return candidates, nil
}

// Enqueue queues a single-file download from the job's peer.
//
// Calls POST /api/v0/transfers/downloads/{username}.
func (s *SlskdService) Enqueue(ctx context.Context, job models.DownloadJob) error {
	endpoint := "/transfers/downloads/" + url.PathEscape(job.Source)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, []models.DownloadJob{job}, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadRejected, err)
	}
	return nil
}

// PendingDownloads returns transfers whose state is not Completed.
//
// Calls GET /api/v0/transfers/downloads.
func (s *SlskdService) PendingDownloads(ctx context.Context) ([]models.PendingDownload, error) {
	var users []SlskdUserTransfers
	if err := s.doRequest(ctx, http.MethodGet, "/transfers/downloads", nil, &users); err != nil {
		return nil, err
	}

	var pending []models.PendingDownload
	for _, u := range users {
		for _, dir := range u.Directories {
			for _, f := range dir.Files {
				if f.ID == "" || strings.HasPrefix(f.State, "Completed") {
					continue
				}
				pending = append(pending, models.PendingDownload{
					Source:   u.Username,
					ID:       f.ID,
					Filename: f.Filename,
					State:    f.State,
				})
			}
		}
	}
	return pending, nil
}

// CancelDownload cancels a transfer.
//
// Calls DELETE /api/v0/transfers/downloads/{username}/{id}.
func (s *SlskdService) CancelDownload(ctx context.Context, d models.PendingDownload) error {
	endpoint := "/transfers/downloads/" + url.PathEscape(d.Source) + "/" + url.PathEscape(d.ID)
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}
