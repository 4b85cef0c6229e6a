package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/acquire"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/desertthunder/mixbridge/internal/ui"
)

// QueueList prints downloads the backend has not completed.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	pending, err := r.backendService().PendingDownloads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending downloads: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(pending, true)
	}
	if len(pending) == 0 {
		return r.writePlain("Queue is empty\n")
	}

	rows := make([][]string, 0, len(pending))
	for _, d := range pending {
		rows = append(rows, []string{d.Source, d.State, d.Filename})
	}
	r.writePlain("%s\n\n", ui.Table(r.palette, rows))
	return r.writePlain("%d pending downloads\n", len(pending))
}

// QueueClear cancels every pending download. Individual cancellation failures are tolerated.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	client := acquire.NewClient(r.backendService(), r.acquireOptions(), shared.WithLogger(r.logger, "component", "queue"))
	cleared, err := client.ClearPending(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s Cancelled %d pending downloads\n", r.palette.OK("✓"), cleared)
}
