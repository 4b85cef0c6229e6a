package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
	tu "github.com/desertthunder/mixbridge/internal/testing"
)

func TestSlskdService(t *testing.T) {
	t.Run("NewSlskdService", func(t *testing.T) {
		t.Run("creates service with default URL", func(t *testing.T) {
			if svc := NewSlskdService("", "key", 0); svc.baseURL != defaultSlskdURL {
				t.Errorf("expected baseURL to be %s, got %s", defaultSlskdURL, svc.baseURL)
			}
		})

		t.Run("trims trailing slash and applies timeout", func(t *testing.T) {
			svc := NewSlskdService("http://slskd:5030/", "key", 5*time.Second)
			if svc.baseURL != "http://slskd:5030" {
				t.Errorf("unexpected baseURL %s", svc.baseURL)
			}
			if svc.httpClient.Timeout != 5*time.Second {
				t.Errorf("unexpected timeout %s", svc.httpClient.Timeout)
			}
			if svc.Name() != "slskd" {
				t.Errorf("expected name to be 'slskd', got %s", svc.Name())
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/v0/searches" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("X-API-Key") != "secret" {
				t.Errorf("expected X-API-Key header")
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if body["searchText"] != "Artist Title" {
				t.Errorf("unexpected searchText %q", body["searchText"])
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"abc-123","searchText":"Artist Title","state":"InProgress"}`)
		}))
		defer server.Close()

		id, err := NewSlskdService(server.URL, "secret", 0).Search(context.Background(), "Artist Title")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "abc-123" {
			t.Errorf("expected id abc-123, got %s", id)
		}
	})

	t.Run("Search Without ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		if _, err := NewSlskdService(server.URL, "", 0).Search(context.Background(), "q"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("SearchResults", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v0/searches/abc" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("includeResponses") != "true" {
				t.Errorf("expected includeResponses=true")
			}
			fmt.Fprint(w, `{"id":"abc","responses":[
				{"username":"peer1","files":[{"filename":"@@a\\Artist - Title.mp3","size":100,"bitRate":320}]},
				{"username":"peer2","files":[
					{"filename":"@@b\\Artist - Title.flac","size":200},
					{"filename":"@@b\\Artist - Title.mp3","size":90,"bitRate":256}
				]}
			]}`)
		}))
		defer server.Close()

		got, err := NewSlskdService(server.URL, "", 0).SearchResults(context.Background(), "abc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 candidates, got %d", len(got))
		}
		want := models.Candidate{Source: "peer1", Filename: `@@a\Artist - Title.mp3`, Size: 100, BitRate: 320}
		if got[0] != want {
			t.Errorf("expected %+v, got %+v", want, got[0])
		}
		if got[1].Source != "peer2" || got[1].BitRate != 0 || got[2].BitRate != 256 {
			t.Errorf("unexpected order or values: %+v", got)
		}
	})

	t.Run("SearchResults Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewSlskdService(server.URL, "", 0).SearchResults(context.Background(), "gone")
		if !errors.Is(err, shared.ErrSearchNotFound) {
			t.Errorf("expected ErrSearchNotFound, got %v", err)
		}
	})

	t.Run("Enqueue", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusCreated} {
			t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.Method != http.MethodPost || r.URL.Path != "/api/v0/transfers/downloads/peer one" {
						t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					}
					var jobs []map[string]any
					if err := json.NewDecoder(r.Body).Decode(&jobs); err != nil {
						t.Errorf("failed to decode body: %v", err)
					}
					if len(jobs) != 1 || jobs[0]["filename"] != "a.mp3" || jobs[0]["size"] != float64(10) {
						t.Errorf("unexpected payload %v", jobs)
					}
					if _, ok := jobs[0]["Source"]; ok {
						t.Errorf("source must not be sent in the body")
					}
					w.WriteHeader(status)
				}))
				defer server.Close()

				job := models.DownloadJob{Source: "peer one", Filename: "a.mp3", Size: 10}
				if err := NewSlskdService(server.URL, "", 0).Enqueue(context.Background(), job); err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			})
		}

		t.Run("rejected", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, "peer offline")
			}))
			defer server.Close()

			err := NewSlskdService(server.URL, "", 0).Enqueue(context.Background(), models.DownloadJob{Source: "p", Filename: "a.mp3"})
			if !errors.Is(err, shared.ErrDownloadRejected) {
				t.Errorf("expected ErrDownloadRejected, got %v", err)
			}
		})
	})

	t.Run("PendingDownloads", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/api/v0/transfers/downloads" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			fmt.Fprint(w, `[
				{"username":"peer1","directories":[{"directory":"@@a","files":[
					{"id":"1","filename":"@@a\\one.mp3","state":"Queued, Remotely"},
					{"id":"2","filename":"@@a\\two.mp3","state":"Completed, Succeeded"}
				]}]},
				{"username":"peer2","directories":[{"directory":"@@b","files":[
					{"id":"3","filename":"@@b\\three.mp3","state":"InProgress"}
				]}]}
			]`)
		}))
		defer server.Close()

		pending, err := NewSlskdService(server.URL, "", 0).PendingDownloads(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("expected 2 pending, got %d", len(pending))
		}
		if pending[0].Source != "peer1" || pending[0].ID != "1" || pending[1].ID != "3" {
			t.Errorf("unexpected pending list %+v", pending)
		}
	})

	t.Run("CancelDownload", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusNoContent} {
			t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.Method != http.MethodDelete || r.URL.Path != "/api/v0/transfers/downloads/peer1/42" {
						t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					}
					w.WriteHeader(status)
				}))
				defer server.Close()

				err := NewSlskdService(server.URL, "", 0).CancelDownload(context.Background(), models.PendingDownload{Source: "peer1", ID: "42"})
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			})
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		svc := NewSlskdService("http://slskd", "", 0)
		svc.httpClient = &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

		if _, err := svc.PendingDownloads(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Body Read Failure", func(t *testing.T) {
		svc := NewSlskdService("http://slskd", "", 0)
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: make(http.Header)}
		svc.httpClient = &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}

		_, err := svc.PendingDownloads(context.Background())
		if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("Malformed Response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{not json`)
		}))
		defer server.Close()

		if _, err := NewSlskdService(server.URL, "", 0).SearchResults(context.Background(), "x"); err == nil {
			t.Error("expected decode error")
		}
	})
}
