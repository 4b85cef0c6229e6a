package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/mixbridge/internal/acquire"
	"github.com/desertthunder/mixbridge/internal/library"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/organize"
	"github.com/desertthunder/mixbridge/internal/playlist"
	"github.com/desertthunder/mixbridge/internal/reconcile"
	"github.com/desertthunder/mixbridge/internal/services"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/desertthunder/mixbridge/internal/staging"
	"github.com/desertthunder/mixbridge/internal/tagging"
)

// RunRecorder persists finished run reports.
type RunRecorder interface {
	Create(run *models.RunReport) error
}

// Options holds the paths and timings a run needs.
type Options struct {
	StagingDir   string
	IntakeDir    string
	LibraryIndex string
	PlaylistPath string
	Format       string
	RunTimeout   time.Duration // zero disables the deadline
	SettleDelay  time.Duration
}

// OptionsFromConfig maps the configuration file onto engine options.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		StagingDir:   cfg.Paths.StagingDir,
		IntakeDir:    cfg.Paths.IntakeDir,
		LibraryIndex: cfg.Paths.LibraryIndex,
		PlaylistPath: cfg.PlaylistPath(),
		Format:       cfg.Backend.Format,
		RunTimeout:   cfg.Sync.RunTimeout.Duration,
		SettleDelay:  cfg.Sync.SettleDelay.Duration,
	}
}

// SyncEngine runs the full reconcile, acquire and post-process cycle for one playlist.
type SyncEngine struct {
	source     services.Source
	acquirer   *acquire.Client
	organizer  *organize.Organizer
	normalizer *tagging.Normalizer
	sweeper    *staging.Sweeper
	recorder   RunRecorder
	clock      acquire.Clock
	opts       Options
	logger     *log.Logger
}

// NewSyncEngine wires every stage from cfg.
func NewSyncEngine(source services.Source, backend services.Backend, cfg *shared.Config, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	opts := OptionsFromConfig(cfg)

	acqOpts := acquire.Options{
		Format:       cfg.Backend.Format,
		MinBitRate:   cfg.Backend.MinBitRate,
		PollInterval: cfg.Backend.PollInterval.Duration,
		MaxWait:      cfg.Backend.MaxWait.Duration,
		Pacing:       cfg.Sync.TrackPacing.Duration,
	}
	orgOpts := organize.Options{Format: cfg.Backend.Format, PurgeOnCopyFailure: cfg.Sync.PurgeOnCopyFailure}
	tagOpts := tagging.Options{Album: cfg.Tags.Album, AlbumArtist: cfg.Tags.AlbumArtist, Format: cfg.Backend.Format}

	return &SyncEngine{
		source:     source,
		acquirer:   acquire.NewClient(backend, acqOpts, shared.WithLogger(logger, "component", "acquire")),
		organizer:  organize.NewOrganizer(tagging.Reader{}, orgOpts, shared.WithLogger(logger, "component", "organize")),
		normalizer: tagging.NewNormalizer(tagOpts, shared.WithLogger(logger, "component", "tagging")),
		sweeper:    staging.NewSweeper(cfg.Sync.RetentionDays, []string{opts.PlaylistPath}, shared.WithLogger(logger, "component", "sweep")),
		clock:      acquire.SystemClock(),
		opts:       opts,
		logger:     logger,
	}
}

// WithClock replaces the clock used for deadlines, pacing, polling and the settle delay.
func (e *SyncEngine) WithClock(clock acquire.Clock) *SyncEngine {
	e.clock = clock
	e.acquirer.WithClock(clock)
	return e
}

// WithRecorder persists each report once the run finishes.
func (e *SyncEngine) WithRecorder(r RunRecorder) *SyncEngine {
	e.recorder = r
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes one sync cycle for ref and always returns a report. Stage failures are
// recorded in the report; cancelling ctx ends the run after the current stage.
func (e *SyncEngine) Run(ctx context.Context, ref string, progress chan<- ProgressUpdate) *models.RunReport {
	start := e.clock.Now()
	report := &models.RunReport{
		ID:          shared.GenerateID(),
		PlaylistRef: ref,
		StartedAt:   start,
	}
	logger := e.logger.With("run", report.ID)

	e.run(ctx, ref, start, report, progress, logger)

	report.Elapsed = e.clock.Now().Sub(start)
	e.record(report, progress, logger)

	logger.Info("sync complete",
		"desired", report.Desired,
		"library", report.MatchedLibrary,
		"staging", report.MatchedStaging,
		"downloaded", report.Downloaded,
		"timed_out", report.TimedOut,
		"elapsed", report.Elapsed,
	)
	return report
}

func (e *SyncEngine) run(ctx context.Context, ref string, start time.Time, report *models.RunReport, progress chan<- ProgressUpdate, logger *log.Logger) {
	e.sendProgress(progress, fetchSourceUpdate(ref))
	tracks, err := e.source.Tracks(ctx, ref)
	if e.fail(ctx, report, "source", err, logger) {
		return
	}
	report.Desired = len(tracks)
	logger.Info("fetched source playlist", "source", e.source.Name(), "tracks", len(tracks))

	ix, err := library.Load(e.opts.LibraryIndex)
	if errors.Is(err, shared.ErrIndexNotFound) {
		logger.Warn("library index not found, treating library as empty", "path", e.opts.LibraryIndex)
	} else if err != nil {
		report.AddError("library", err)
		logger.Error("failed to load library index", "error", err)
	}

	staged, err := staging.ListAudio(e.opts.StagingDir, e.opts.Format)
	if err != nil {
		report.AddError("staging", err)
		logger.Error("failed to list staging directory", "error", err)
	}

	rec := reconcile.Reconcile(tracks, ix, staged)
	report.MatchedLibrary = rec.Library
	report.MatchedStaging = rec.Staged
	report.Missing = len(rec.Missing)
	e.sendProgress(progress, reconcileUpdate(report))
	logger.Info("reconciled", "library", rec.Library, "staging", rec.Staged, "missing", len(rec.Missing))

	var expected []models.Track
	if len(rec.Missing) > 0 {
		var deadline time.Time
		if e.opts.RunTimeout > 0 {
			deadline = start.Add(e.opts.RunTimeout)
		}

		total := len(rec.Missing)
		acq, err := e.acquirer.Run(ctx, rec.Missing, deadline, func(i int, tr acquire.TrackResult) {
			e.sendProgress(progress, acquireUpdate(i+1, total, tr))
		})
		report.Downloaded = acq.Submitted
		report.TimedOut = acq.TimedOut
		report.NoMatch = acq.NoMatch
		report.Skipped = acq.Skipped
		report.Cleared = acq.Cleared
		report.DeadlineExceeded = acq.DeadlineExceeded
		if e.fail(ctx, report, "acquire", err, logger) {
			return
		}

		for _, tr := range acq.Tracks {
			if tr.Outcome == acquire.Submitted {
				expected = append(expected, tr.Track)
			}
		}
	}

	if report.Downloaded > 0 && e.opts.SettleDelay > 0 {
		e.sendProgress(progress, settleUpdate(report))
		if e.fail(ctx, report, "settle", e.clock.Sleep(ctx, e.opts.SettleDelay), logger) {
			return
		}
	}

	org, err := e.organizer.Organize(ctx, e.opts.IntakeDir, e.opts.StagingDir, expected)
	report.Organized = org.Copied
	report.Duplicates = org.Duplicates
	report.CopyFailures = org.Failed
	if e.fail(ctx, report, "organize", err, logger) {
		return
	}
	if org.PurgeSkipped {
		report.AddError("organize", fmt.Errorf("intake purge skipped after %d copy failures", org.Failed))
	}
	e.sendProgress(progress, organizeUpdate(report))

	tags, err := e.normalizer.NormalizeDir(ctx, e.opts.StagingDir)
	report.Tagged = tags.Tagged
	if e.fail(ctx, report, "tag", err, logger) {
		return
	}
	e.sendProgress(progress, tagUpdate(report))

	staged, err = staging.ListAudio(e.opts.StagingDir, e.opts.Format)
	if err != nil {
		report.AddError("playlist", err)
		logger.Error("failed to list staging directory", "error", err)
	}
	pl := playlist.Build(rec.LibraryPaths, staged)
	written, err := pl.Save(e.opts.PlaylistPath)
	if err != nil {
		report.AddError("playlist", err)
		logger.Error("failed to write playlist", "path", e.opts.PlaylistPath, "error", err)
	} else if written {
		report.PlaylistEntries = pl.Len()
		logger.Info("playlist written", "path", e.opts.PlaylistPath, "entries", pl.Len())
	}
	e.sendProgress(progress, playlistUpdate(report, e.opts.PlaylistPath, written))

	swept, err := e.sweeper.Sweep(ctx, e.opts.StagingDir, e.clock.Now())
	report.Swept = len(swept.Removed)
	if e.fail(ctx, report, "sweep", err, logger) {
		return
	}
	e.sendProgress(progress, sweepUpdate(report))
}

// fail records err against stage and reports whether the run must stop.
func (e *SyncEngine) fail(ctx context.Context, report *models.RunReport, stage string, err error, logger *log.Logger) bool {
	if err == nil {
		return false
	}
	report.AddError(stage, err)
	if ctx.Err() != nil {
		logger.Warn("run cancelled", "stage", stage)
		return true
	}
	logger.Error("stage failed", "stage", stage, "error", err)
	return false
}

func (e *SyncEngine) record(report *models.RunReport, progress chan<- ProgressUpdate, logger *log.Logger) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Create(report); err != nil {
		logger.Error("failed to record run", "error", err)
		return
	}
	e.sendProgress(progress, recordUpdate(report))
}
