// package formatter renders sync run reports and run history as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

// Format names an output encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts the names above plus the short forms "txt" and "md".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Render encodes runs in the requested format. now anchors relative times.
func Render(f Format, runs []*models.RunReport, now time.Time) ([]byte, error) {
	switch f {
	case Text:
		return HistoryToText(runs, now)
	case Markdown:
		return HistoryToMarkdown(runs, now)
	case CSV:
		return HistoryToCSV(runs)
	case JSON:
		return HistoryToJSON(runs)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
	}
}

// HistoryToCSV writes one row per run with every counter as a column.
func HistoryToCSV(runs []*models.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{
		"ID", "Sequence", "Playlist", "Started", "ElapsedSeconds", "Desired",
		"Library", "Staging", "Missing", "Downloaded", "TimedOut", "NoMatch",
		"Skipped", "Cleared", "Organized", "Duplicates", "CopyFailures",
		"Tagged", "Swept", "PlaylistEntries", "DeadlineExceeded", "Errors",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			run.ID,
			strconv.Itoa(run.Sequence),
			run.PlaylistRef,
			run.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(int64(run.Elapsed/time.Second), 10),
			strconv.Itoa(run.Desired),
			strconv.Itoa(run.MatchedLibrary),
			strconv.Itoa(run.MatchedStaging),
			strconv.Itoa(run.Missing),
			strconv.Itoa(run.Downloaded),
			strconv.Itoa(run.TimedOut),
			strconv.Itoa(run.NoMatch),
			strconv.Itoa(run.Skipped),
			strconv.Itoa(run.Cleared),
			strconv.Itoa(run.Organized),
			strconv.Itoa(run.Duplicates),
			strconv.Itoa(run.CopyFailures),
			strconv.Itoa(run.Tagged),
			strconv.Itoa(run.Swept),
			strconv.Itoa(run.PlaylistEntries),
			strconv.FormatBool(run.DeadlineExceeded),
			strings.Join(run.Errors, "; "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown renders runs as a table, newest first as given.
func HistoryToMarkdown(runs []*models.RunReport, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync History\n\n")
	buf.WriteString(fmt.Sprintf("**Runs**: %d\n\n", len(runs)))
	if len(runs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Started | Elapsed | Desired | Library | Staging | Downloaded | Missing | Entries | Notes |\n")
	buf.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %d | %d | %d | %d | %d | %s |\n",
			run.Sequence,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			formatElapsed(run.Elapsed),
			run.Desired,
			run.MatchedLibrary,
			run.MatchedStaging,
			run.Downloaded,
			run.Missing,
			run.PlaylistEntries,
			notes(run),
		))
	}

	return buf.Bytes(), nil
}

// HistoryToText renders one line per run.
func HistoryToText(runs []*models.RunReport, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No sync runs recorded.\n")
		return buf.Bytes(), nil
	}

	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("#%d %s (%s): %d desired, %d library, %d staging, %d downloaded, %d entries",
			run.Sequence,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Desired,
			run.MatchedLibrary,
			run.MatchedStaging,
			run.Downloaded,
			run.PlaylistEntries,
		))
		if n := notes(run); n != "" {
			buf.WriteString(" [" + n + "]")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// HistoryToJSON encodes runs as an indented array.
func HistoryToJSON(runs []*models.RunReport) ([]byte, error) {
	if runs == nil {
		runs = []*models.RunReport{}
	}
	return shared.MarshalJSON(runs, true)
}

// ReportToText renders the full breakdown of a single run.
func ReportToText(run *models.RunReport) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", run.PlaylistRef))
	buf.WriteString(fmt.Sprintf("Started: %s\n", run.StartedAt.Local().Format(time.RFC1123)))
	buf.WriteString(fmt.Sprintf("Elapsed: %s\n\n", formatElapsed(run.Elapsed)))

	rows := []struct {
		label string
		value int
	}{
		{"Desired", run.Desired},
		{"In library", run.MatchedLibrary},
		{"In staging", run.MatchedStaging},
		{"Missing", run.Missing},
		{"Downloaded", run.Downloaded},
		{"Timed out", run.TimedOut},
		{"No match", run.NoMatch},
		{"Skipped", run.Skipped},
		{"Cleared", run.Cleared},
		{"Organized", run.Organized},
		{"Duplicates", run.Duplicates},
		{"Copy failures", run.CopyFailures},
		{"Tagged", run.Tagged},
		{"Swept", run.Swept},
		{"Playlist entries", run.PlaylistEntries},
	}
	for _, row := range rows {
		buf.WriteString(fmt.Sprintf("%-17s %d\n", row.label+":", row.value))
	}

	if run.DeadlineExceeded {
		buf.WriteString("\nRun deadline exceeded; remaining tracks were skipped.\n")
	}
	if len(run.Errors) > 0 {
		buf.WriteString("\nErrors:\n")
		for _, e := range run.Errors {
			buf.WriteString("  - " + e + "\n")
		}
	}

	return buf.Bytes()
}

// WriteExport writes rendered output to path, or returns false when path is empty.
func WriteExport(path string, data []byte) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write export file: %w", err)
	}
	return true, nil
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func notes(run *models.RunReport) string {
	var parts []string
	if run.DeadlineExceeded {
		parts = append(parts, "deadline")
	}
	if n := len(run.Errors); n > 0 {
		parts = append(parts, english.Plural(n, "error", "errors"))
	}
	return strings.Join(parts, ", ")
}
