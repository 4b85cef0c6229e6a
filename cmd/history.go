package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/formatter"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/repositories"
)

// History lists recorded runs in the requested format.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	data, err := formatter.Render(format, runs, r.now())
	if err != nil {
		return err
	}

	written, err := formatter.WriteExport(cmd.String("output"), data)
	if err != nil {
		return err
	}
	if written {
		r.logger.Info("history exported", "path", cmd.String("output"), "runs", len(runs))
		return r.writePlain("%s Wrote %d runs to %s\n", r.palette.OK("✓"), len(runs), cmd.String("output"))
	}
	return r.writePlain("%s", data)
}

// HistoryShow prints the full report for one run, or the latest when no ID is given.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)

	var run *models.RunReport
	if id := cmd.Args().First(); id != "" {
		run, err = repo.Get(id)
	} else {
		run, err = repo.Latest()
	}
	if err != nil {
		return err
	}

	r.writePlain("%s\n\n", r.palette.Title(fmt.Sprintf("Run #%d (%s)", run.Sequence, run.ID)))
	return r.writePlain("%s", formatter.ReportToText(run))
}

// HistoryPrune keeps the newest --keep runs.
func (r *Runner) HistoryPrune(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := repositories.NewRunRepository(db).Prune(cmd.Int("keep"))
	if err != nil {
		return err
	}
	return r.writePlain("Removed %d runs\n", removed)
}
