// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// syncCommand runs one full sync cycle
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the playlist, download what is missing and rebuild the export",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist ID, URI or URL (defaults to source.spotify.playlist_id)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the run report as JSON instead of a summary",
			},
		},
		Action: r.Sync,
	}
}

// indexCommand manages the library index
func indexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Library index operations",
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "Scan library roots and rewrite the index file",
				ArgsUsage: "[root...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Index file to write (defaults to paths.library_index)",
					},
				},
				Action: r.IndexBuild,
			},
		},
	}
}

// dedupeCommand removes staged files the library already owns
func dedupeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dedupe",
		Usage: "Delete staged files already present in the library index",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report duplicates without deleting them",
			},
		},
		Action: r.Dedupe,
	}
}

// sweepCommand runs the retention sweep on its own
func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete staged files older than the retention period",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Usage: "Retention in days (defaults to sync.retention_days)",
			},
		},
		Action: r.Sweep,
	}
}

// queueCommand inspects the backend download queue
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Backend download queue operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List downloads that have not completed",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QueueList,
			},
			{
				Name:   "clear",
				Usage:  "Cancel every pending download",
				Action: r.QueueClear,
			},
		},
	}
}

// historyCommand reads recorded sync runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded sync runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, csv or json",
				Value:   "text",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs (0 for all)",
				Value:   20,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show the full report of one run (defaults to the latest)",
				ArgsUsage: "[id]",
				Action:    r.HistoryShow,
			},
			{
				Name:  "prune",
				Usage: "Delete all but the newest runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of runs to keep",
						Value: 100,
					},
				},
				Action: r.HistoryPrune,
			},
		},
	}
}

// matchCommand explains how the matching engine treats a candidate
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Check whether a filename matches an artist and title",
		ArgsUsage: "<artist> <title> <candidate>",
		Action:    r.Match,
	}
}

// setupCommand initializes configuration and storage
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the run history database and apply migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "rollback", Usage: "Revert the most recently applied migration"},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
