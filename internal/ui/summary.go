package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/tasks"
)

// Watch writes one styled line per update until updates is closed.
func Watch(w io.Writer, p *Palette, updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		fmt.Fprintf(w, "%s %s\n", p.Help(fmt.Sprintf("%-14s", u.Phase)), u.Message)
	}
}

// RunSummary renders the counters of a finished run inside a box.
func RunSummary(p *Palette, run *models.RunReport) string {
	header := p.OK("✓ Sync complete")
	if len(run.Errors) > 0 {
		header = p.Warn(fmt.Sprintf("! Sync finished with %s", english.Plural(len(run.Errors), "error", "errors")))
	}

	rows := [][]string{
		{"Playlist", run.PlaylistRef},
		{"Started", humanize.Time(run.StartedAt)},
		{"Elapsed", run.Elapsed.Round(time.Second).String()},
		{"Desired", humanize.Comma(int64(run.Desired))},
		{"In library", humanize.Comma(int64(run.MatchedLibrary))},
		{"In staging", humanize.Comma(int64(run.MatchedStaging))},
		{"Downloaded", fmt.Sprintf("%d of %d missing", run.Downloaded, run.Missing)},
		{"Timed out", humanize.Comma(int64(run.TimedOut))},
		{"No match", humanize.Comma(int64(run.NoMatch))},
		{"Organized", fmt.Sprintf("%d (%d duplicates, %d failed)", run.Organized, run.Duplicates, run.CopyFailures)},
		{"Tagged", humanize.Comma(int64(run.Tagged))},
		{"Playlist entries", humanize.Comma(int64(run.PlaylistEntries))},
		{"Swept", humanize.Comma(int64(run.Swept))},
	}
	if run.DeadlineExceeded {
		rows = append(rows, []string{"Deadline", p.Warn(fmt.Sprintf("exceeded, %d skipped, %d cleared", run.Skipped, run.Cleared))})
	}

	body := lipgloss.JoinVertical(lipgloss.Left, header, "", Table(p, rows))
	if len(run.Errors) > 0 {
		var errs []string
		for _, e := range run.Errors {
			errs = append(errs, p.Err("✗ ")+e)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", strings.Join(errs, "\n"))
	}
	return p.Box(body)
}

// Table aligns rows into columns. The first column is rendered as a label.
func Table(p *Palette, rows [][]string) string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			pad := ""
			if i < len(row)-1 {
				pad = strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			if i == 0 {
				cell = p.Title(cell)
			}
			cells[i] = cell + pad
		}
		lines = append(lines, strings.Join(cells, "  "))
	}
	return strings.Join(lines, "\n")
}
