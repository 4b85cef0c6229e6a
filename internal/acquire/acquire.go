// Package acquire runs the search, poll, filter and download sequence for missing tracks
// against an acquisition [services.Backend].
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/services"
	"github.com/desertthunder/mixbridge/internal/shared"
)

// Outcome is the terminal state of one track.
type Outcome int

const (
	Submitted Outcome = iota
	NoMatch
	TimedOut
	SearchFailed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Submitted:
		return "submitted"
	case NoMatch:
		return "no_match"
	case TimedOut:
		return "timed_out"
	case SearchFailed:
		return "search_failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// TrackResult is the outcome of acquiring one track.
type TrackResult struct {
	Track     models.Track
	Outcome   Outcome
	Candidate *models.Candidate // submitted candidate
	Found     int               // candidates returned by the backend
	Eligible  int               // candidates left after filtering
	Rejected  int               // submissions refused by the backend
	Waited    time.Duration
	Err       error
}

// Result summarizes a run over the missing list.
type Result struct {
	Tracks           []TrackResult
	Submitted        int
	NoMatch          int // includes search failures
	TimedOut         int
	Skipped          int
	Cleared          int
	DeadlineExceeded bool
}

func (r *Result) add(tr TrackResult) {
	r.Tracks = append(r.Tracks, tr)
	switch tr.Outcome {
	case Submitted:
		r.Submitted++
	case NoMatch, SearchFailed:
		r.NoMatch++
	case TimedOut:
		r.TimedOut++
	case Skipped:
		r.Skipped++
	}
}

// Options configures a [Client].
type Options struct {
	Format       string        // required file extension, without dot
	MinBitRate   int           // kbps floor; candidates below it are dropped
	PollInterval time.Duration // sleep before each results fetch
	MaxWait      time.Duration // give up polling once this much has been waited
	Pacing       time.Duration // minimum spacing between track searches; 0 disables
}

// DefaultOptions mirrors the defaults in config.example.toml.
func DefaultOptions() Options {
	return Options{
		Format:       "mp3",
		MinBitRate:   320,
		PollInterval: 10 * time.Second,
		MaxWait:      60 * time.Second,
	}
}

// Client processes missing tracks strictly one at a time.
type Client struct {
	backend services.Backend
	opts    Options
	clock   Clock
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient creates an acquisition client using the system clock.
func NewClient(backend services.Backend, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}

	return &Client{
		backend: backend,
		opts:    opts,
		clock:   SystemClock(),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// WithClock replaces the client's time source.
func (c *Client) WithClock(clock Clock) *Client {
	c.clock = clock
	return c
}

// Run acquires each track in order. The deadline is checked before each track; once it has
// passed the remaining tracks are skipped and the backend's pending queue is cleared once.
// A zero deadline disables the check.
//
// Cancelling ctx stops the run and returns ctx's error with the partial result; the queue is
// left as is.
func (c *Client) Run(ctx context.Context, tracks []models.Track, deadline time.Time, onTrack func(int, TrackResult)) (Result, error) {
	var res Result

	for i, track := range tracks {
		if !deadline.IsZero() && !c.clock.Now().Before(deadline) {
			res.DeadlineExceeded = true
			c.logger.Warn("run deadline reached, skipping remaining tracks", "remaining", len(tracks)-i)
			for _, rest := range tracks[i:] {
				res.add(TrackResult{Track: rest, Outcome: Skipped})
			}
			break
		}

		if err := c.pace(ctx); err != nil {
			return c.abandon(res, tracks[i:]), err
		}

		tr := c.Acquire(ctx, track)
		if errors.Is(tr.Err, context.Canceled) || errors.Is(tr.Err, context.DeadlineExceeded) {
			return c.abandon(res, tracks[i:]), tr.Err
		}
		res.add(tr)
		if onTrack != nil {
			onTrack(i, tr)
		}
	}

	if res.DeadlineExceeded {
		cleared, err := c.ClearPending(ctx)
		res.Cleared = cleared
		if err != nil {
			return res, fmt.Errorf("failed to clear pending downloads: %w", err)
		}
	}

	return res, nil
}

func (c *Client) abandon(res Result, rest []models.Track) Result {
	for _, t := range rest {
		res.add(TrackResult{Track: t, Outcome: Skipped})
	}
	return res
}

func (c *Client) pace(ctx context.Context) error {
	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		return c.clock.Sleep(ctx, d)
	}
	return ctx.Err()
}

// Acquire runs the state machine for a single track. It never returns an error for backend
// failures; they are reflected in the outcome. Err is set to ctx's error on cancellation.
func (c *Client) Acquire(ctx context.Context, track models.Track) TrackResult {
	tr := TrackResult{Track: track}
	logger := c.logger.With("artist", track.Artist, "title", track.Title)
	query := track.Artist + " " + track.Title

	logger.Info("searching", "query", query)
	searchID, err := c.backend.Search(ctx, query)
	if err != nil {
		logger.Error("search failed", "error", err)
		tr.Outcome, tr.Err = SearchFailed, err
		if ctx.Err() != nil {
			tr.Err = ctx.Err()
		}
		return tr
	}

	candidates, waited, err := c.poll(ctx, searchID, logger)
	tr.Waited, tr.Found = waited, len(candidates)
	if err != nil {
		tr.Outcome, tr.Err = Skipped, err
		return tr
	}
	if len(candidates) == 0 {
		logger.Warn("no results", "waited", waited)
		tr.Outcome = TimedOut
		return tr
	}

	eligible := Filter(candidates, c.opts.Format, c.opts.MinBitRate)
	tr.Eligible = len(eligible)

	q := matching.NewQuery(track.Artist, track.Title)
	for _, cand := range eligible {
		if !q.Matches(cand.Filename) {
			logger.Debug("candidate does not match", "filename", cand.Filename)
			continue
		}

		if err := c.backend.Enqueue(ctx, cand.Job()); err != nil {
			if ctx.Err() != nil {
				tr.Outcome, tr.Err = Skipped, ctx.Err()
				return tr
			}
			tr.Rejected++
			logger.Error("download rejected, trying next candidate", "source", cand.Source, "error", err)
			continue
		}

		logger.Info("download queued", "source", cand.Source, "filename", cand.Filename, "bitrate", cand.BitRate)
		chosen := cand
		tr.Outcome, tr.Candidate = Submitted, &chosen
		return tr
	}

	logger.Warn("no matching candidate", "found", tr.Found, "eligible", tr.Eligible, "rejected", tr.Rejected)
	tr.Outcome = NoMatch
	return tr
}

// poll sleeps then fetches until results arrive or MaxWait has been waited. Fetch errors count
// as an empty poll.
func (c *Client) poll(ctx context.Context, searchID string, logger *log.Logger) ([]models.Candidate, time.Duration, error) {
	var waited time.Duration
	for waited < c.opts.MaxWait {
		if err := c.clock.Sleep(ctx, c.opts.PollInterval); err != nil {
			return nil, waited, err
		}
		waited += c.opts.PollInterval

		candidates, err := c.backend.SearchResults(ctx, searchID)
		if err != nil {
			logger.Warn("failed to fetch results", "waited", waited, "error", err)
			continue
		}
		logger.Debug("polled", "waited", waited, "files", len(candidates))
		if len(candidates) > 0 {
			return candidates, waited, nil
		}
	}
	return nil, waited, nil
}

// Filter keeps candidates with the target extension and at least minBitRate, preserving order.
func Filter(candidates []models.Candidate, format string, minBitRate int) []models.Candidate {
	var out []models.Candidate
	for _, c := range candidates {
		if !shared.HasExt(c.Filename, format) {
			continue
		}
		if c.BitRate < minBitRate {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ClearPending cancels every pending download. Individual failures are logged and skipped.
func (c *Client) ClearPending(ctx context.Context) (int, error) {
	pending, err := c.backend.PendingDownloads(ctx)
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, d := range pending {
		if err := c.backend.CancelDownload(ctx, d); err != nil {
			c.logger.Error("failed to cancel download", "source", d.Source, "id", d.ID, "error", err)
			continue
		}
		cleared++
	}
	c.logger.Info("cleared pending downloads", "cleared", cleared, "pending", len(pending))
	return cleared, nil
}
