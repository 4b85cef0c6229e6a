package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/library"
	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/desertthunder/mixbridge/internal/staging"
	"github.com/desertthunder/mixbridge/internal/tagging"
	"github.com/desertthunder/mixbridge/internal/ui"
)

// IndexBuild rescans the library roots and rewrites the index file.
func (r *Runner) IndexBuild(ctx context.Context, cmd *cli.Command) error {
	roots := cmd.Args().Slice()
	if len(roots) == 0 {
		roots = r.config.Paths.LibraryRoots
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: no library roots given or configured", shared.ErrMissingArgument)
	}

	output := cmd.String("output")
	if output == "" {
		output = r.config.Paths.LibraryIndex
	}

	indexer := library.NewIndexer(tagging.Reader{}, r.config.Backend.Format, shared.WithLogger(r.logger, "component", "index"))
	stats, err := indexer.BuildFile(ctx, roots, output)
	if err != nil {
		return err
	}

	r.writePlain("%s Indexed %s files into %s\n\n", r.palette.OK("✓"), humanize.Comma(int64(stats.Indexed)), output)
	return r.writePlain("%s\n", ui.Table(r.palette, [][]string{
		{"Scanned", humanize.Comma(int64(stats.Scanned))},
		{"Indexed", humanize.Comma(int64(stats.Indexed))},
		{"Untagged", humanize.Comma(int64(stats.Untagged))},
		{"Unreadable", humanize.Comma(int64(stats.Unreadable))},
		{"Duplicates", humanize.Comma(int64(stats.Duplicates))},
	}))
}

// Dedupe removes staged files that the library index already owns.
func (r *Runner) Dedupe(ctx context.Context, cmd *cli.Command) error {
	ix, err := library.Load(r.config.Paths.LibraryIndex)
	if err != nil {
		if errors.Is(err, shared.ErrIndexNotFound) {
			return fmt.Errorf("%w: run 'mixbridge index build' first", err)
		}
		return err
	}

	dryRun := cmd.Bool("dry-run")
	res, err := staging.Deduplicate(ctx, r.config.Paths.StagingDir, r.config.Backend.Format, ix, dryRun, shared.WithLogger(r.logger, "component", "dedupe"))
	if err != nil {
		return err
	}

	if len(res.Duplicates) == 0 {
		return r.writePlain("No duplicates among %d staged files\n", res.Checked)
	}

	rows := make([][]string, 0, len(res.Duplicates))
	for _, d := range res.Duplicates {
		status := r.palette.Help("would remove")
		if d.Removed {
			status = r.palette.Err("removed")
		} else if !dryRun {
			status = r.palette.Warn("kept")
		}
		rows = append(rows, []string{string(d.Method), d.File, d.LibraryPath, status})
	}
	r.writePlain("%s\n\n", ui.Table(r.palette, rows))

	if dryRun {
		return r.writePlain("%d of %d staged files are already in the library (dry run)\n", len(res.Duplicates), res.Checked)
	}
	return r.writePlain("Removed %d of %d staged files (%d failed)\n", res.Removed, res.Checked, res.Failed)
}

// Sweep deletes staged files older than the retention period, keeping the playlist export.
func (r *Runner) Sweep(ctx context.Context, cmd *cli.Command) error {
	days := r.config.Sync.RetentionDays
	if cmd.IsSet("days") {
		days = cmd.Int("days")
	}
	if days <= 0 {
		return fmt.Errorf("%w: retention must be at least one day", shared.ErrInvalidFlag)
	}

	sweeper := staging.NewSweeper(days, []string{r.config.PlaylistPath()}, shared.WithLogger(r.logger, "component", "sweep"))
	res, err := sweeper.Sweep(ctx, r.config.Paths.StagingDir, r.now())
	if err != nil {
		return err
	}

	r.writePlain("Removed %s older than %s (%s freed)\n",
		english.Plural(len(res.Removed), "file", "files"),
		english.Plural(days, "day", "days"),
		humanize.Bytes(uint64(res.Bytes)),
	)
	if res.Failed > 0 {
		r.writePlain("%s %d files could not be removed\n", r.palette.Warn("!"), res.Failed)
	}
	return nil
}

// Match shows how the matching engine sees an artist, title and candidate filename.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) != 3 {
		return fmt.Errorf("%w: usage: mixbridge match <artist> <title> <candidate>", shared.ErrMissingArgument)
	}
	artist, title, candidate := args[0], args[1], args[2]

	result := r.palette.Err("no match")
	if matching.Matches(candidate, artist, title) {
		result = r.palette.OK("match")
	}

	return r.writePlain("%s\n", ui.Table(r.palette, [][]string{
		{"Key", library.KeyFor(artist, title)},
		{"Artist", matching.Normalize(artist)},
		{"Title", matching.Normalize(title)},
		{"Candidate", matching.Normalize(candidate)},
		{"Folded", matching.Normalize(matching.Fold(candidate))},
		{"Result", result},
	}))
}
