package models

import (
	"fmt"
	"time"
)

// Track is an artist/title pair from the source playlist.
type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// LibraryEntry is one file recorded in the library index, keyed by canonical key.
type LibraryEntry struct {
	Key              string `json:"-"`
	Path             string `json:"path"`
	OriginalFilename string `json:"original_filename"`
	CanonicalName    string `json:"canonical_name"`
}

// Tags holds the embedded artist and title read from an audio file.
type Tags struct {
	Artist string
	Title  string
}

// Complete reports whether both artist and title are present.
func (t *Tags) Complete() bool {
	return t != nil && t.Artist != "" && t.Title != ""
}

// Candidate is a file offered by a backend peer in response to a search.
type Candidate struct {
	Source   string // peer username
	Filename string // remote path as reported by the peer
	Size     int64
	BitRate  int
}

// Job returns the download request for this candidate.
func (c Candidate) Job() DownloadJob {
	return DownloadJob{Source: c.Source, Filename: c.Filename, Size: c.Size}
}

// DownloadJob is a request to fetch one remote file.
type DownloadJob struct {
	Source   string `json:"-"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// PendingDownload is a transfer still held in the backend queue.
type PendingDownload struct {
	Source   string
	ID       string
	Filename string
	State    string
}

// RunReport summarizes one sync run.
type RunReport struct {
	ID               string        `json:"id"`
	Sequence         int           `json:"sequence,omitempty"`
	PlaylistRef      string        `json:"playlist_ref"`
	StartedAt        time.Time     `json:"started_at"`
	Elapsed          time.Duration `json:"elapsed"`
	Desired          int           `json:"desired"`
	MatchedLibrary   int           `json:"matched_library"`
	MatchedStaging   int           `json:"matched_staging"`
	Missing          int           `json:"missing"`
	Downloaded       int           `json:"downloaded"`
	TimedOut         int           `json:"timed_out"`
	NoMatch          int           `json:"no_match"`
	Skipped          int           `json:"skipped"`
	Cleared          int           `json:"cleared"`
	Organized        int           `json:"organized"`
	Duplicates       int           `json:"duplicates"`
	CopyFailures     int           `json:"copy_failures"`
	Tagged           int           `json:"tagged"`
	Swept            int           `json:"swept"`
	PlaylistEntries  int           `json:"playlist_entries"`
	DeadlineExceeded bool          `json:"deadline_exceeded"`
	Errors           []string      `json:"errors,omitempty"`
}

// AddError records a stage failure without stopping the run.
func (r *RunReport) AddError(stage string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// Validate checks the fields the run history requires.
func (r *RunReport) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run report requires an ID")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run report requires a start time")
	}
	if r.Elapsed < 0 {
		return fmt.Errorf("run report elapsed time cannot be negative")
	}
	return nil
}
