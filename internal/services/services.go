package services

import (
	"context"

	"github.com/desertthunder/mixbridge/internal/models"
)

// Source provides the ordered list of desired tracks for a playlist reference.
type Source interface {
	// Tracks resolves ref (an ID, URI or share URL) and returns its tracks in playlist order.
	Tracks(ctx context.Context, ref string) ([]models.Track, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// Backend is a peer-to-peer acquisition service that can search for and queue downloads.
type Backend interface {
	// Search starts a search for query and returns a handle for [Backend.SearchResults].
	Search(ctx context.Context, query string) (string, error)

	// SearchResults returns every file reported so far for a search, in backend order.
	SearchResults(ctx context.Context, searchID string) ([]models.Candidate, error)

	// Enqueue asks the backend to download job. A rejected request returns an error.
	Enqueue(ctx context.Context, job models.DownloadJob) error

	// PendingDownloads lists transfers that have not completed.
	PendingDownloads(ctx context.Context) ([]models.PendingDownload, error)

	// CancelDownload removes a transfer from the queue.
	CancelDownload(ctx context.Context, d models.PendingDownload) error

	Name() string
}
