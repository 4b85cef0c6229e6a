package main

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/repositories"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/desertthunder/mixbridge/internal/tasks"
	"github.com/desertthunder/mixbridge/internal/ui"
)

// Sync runs one full cycle under an exclusive lock and prints the run report.
//
// Stage failures are part of the report, not the exit status.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.String("playlist")
	if ref == "" {
		ref = r.config.Source.Spotify.PlaylistID
	}
	if ref == "" {
		return fmt.Errorf("%w: --playlist or source.spotify.playlist_id is required", shared.ErrMissingArgument)
	}

	lock := flock.New(r.config.Paths.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: lock held at %s", shared.ErrRunInProgress, r.config.Paths.LockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release lock", "path", r.config.Paths.LockFile, "error", err)
		}
	}()

	source, err := r.sourceService()
	if err != nil {
		return err
	}

	engine := tasks.NewSyncEngine(source, r.backendService(), r.config, r.logger).WithClock(r.clock)

	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("run history unavailable, report will not be recorded", "error", err)
	} else {
		defer db.Close()
		engine.WithRecorder(repositories.NewRunRepository(db))
	}

	if cmd.Bool("json") {
		report := engine.Run(ctx, ref, nil)
		return r.writeJSON(report, true)
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		ui.Watch(r.output, r.palette, progress)
		close(done)
	}()

	report := engine.Run(ctx, ref, progress)
	close(progress)
	<-done

	return r.writePlain("\n%s\n", ui.RunSummary(r.palette, report))
}
