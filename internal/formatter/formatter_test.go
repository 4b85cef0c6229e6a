package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
	tu "github.com/desertthunder/mixbridge/internal/testing"
)

var now = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func sampleRuns() []*models.RunReport {
	return []*models.RunReport{
		{
			ID:               "run-2",
			Sequence:         2,
			PlaylistRef:      "pl1",
			StartedAt:        now.Add(-3 * time.Hour),
			Elapsed:          95 * time.Second,
			Desired:          10,
			MatchedLibrary:   5,
			MatchedStaging:   3,
			Missing:          2,
			Downloaded:       1,
			PlaylistEntries:  9,
			DeadlineExceeded: true,
			Errors:           []string{"tag: boom", "sweep: nope"},
		},
		{
			ID:              "run-1",
			Sequence:        1,
			PlaylistRef:     "pl1",
			StartedAt:       now.Add(-27 * time.Hour),
			Elapsed:         40 * time.Second,
			Desired:         8,
			MatchedLibrary:  8,
			PlaylistEntries: 8,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", Text},
		{"txt", Text},
		{"TEXT", Text},
		{"md", Markdown},
		{"markdown", Markdown},
		{"csv", CSV},
		{" json ", JSON},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("HistoryToCSV", func(t *testing.T) {
		data, err := HistoryToCSV(sampleRuns())
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[0], "ID,Sequence,Playlist,Started,ElapsedSeconds") {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if !strings.Contains(lines[1], "run-2,2,pl1,2024-01-02T06:00:00Z,95,10,5,3,2,1") {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasSuffix(lines[1], "true,tag: boom; sweep: nope") {
			t.Errorf("expected deadline flag and errors, got: %s", lines[1])
		}
	})

	t.Run("HistoryToMarkdown", func(t *testing.T) {
		data, err := HistoryToMarkdown(sampleRuns(), now)
		if err != nil {
			t.Fatalf("HistoryToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Sync History",
			"**Runs**: 2",
			"| 2 | 3 hours ago | 1m35s | 10 | 5 | 3 | 1 | 2 | 9 | deadline, 2 errors |",
			"| 1 | 1 day ago | 40s | 8 | 8 | 0 | 0 | 0 | 8 |  |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("HistoryToMarkdown empty", func(t *testing.T) {
		data, _ := HistoryToMarkdown(nil, now)
		if strings.Contains(string(data), "|---|") {
			t.Error("empty history should not render a table")
		}
	})

	t.Run("HistoryToText", func(t *testing.T) {
		data, err := HistoryToText(sampleRuns(), now)
		if err != nil {
			t.Fatalf("HistoryToText failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		if !strings.HasPrefix(lines[0], "#2 ") || !strings.Contains(lines[0], "(3 hours ago)") {
			t.Errorf("unexpected first line: %s", lines[0])
		}
		if !strings.HasSuffix(lines[0], "9 entries [deadline, 2 errors]") {
			t.Errorf("expected notes on first line: %s", lines[0])
		}
		if strings.Contains(lines[1], "[") {
			t.Errorf("clean run should have no notes: %s", lines[1])
		}
	})

	t.Run("HistoryToText empty", func(t *testing.T) {
		data, _ := HistoryToText(nil, now)
		if string(data) != "No sync runs recorded.\n" {
			t.Errorf("unexpected output %q", data)
		}
	})

	t.Run("HistoryToJSON", func(t *testing.T) {
		data, err := HistoryToJSON(sampleRuns())
		if err != nil {
			t.Fatalf("HistoryToJSON failed: %v", err)
		}
		var decoded []models.RunReport
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].ID != "run-2" {
			t.Errorf("unexpected decoded runs %+v", decoded)
		}

		empty, _ := HistoryToJSON(nil)
		if strings.TrimSpace(string(empty)) != "[]" {
			t.Errorf("expected empty array, got %s", empty)
		}
	})

	t.Run("Render dispatches", func(t *testing.T) {
		for _, f := range []Format{Text, Markdown, CSV, JSON} {
			data, err := Render(f, sampleRuns(), now)
			if err != nil || len(data) == 0 {
				t.Errorf("Render(%s) = %d bytes, %v", f, len(data), err)
			}
		}
		if _, err := Render("xml", nil, now); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestReportToText(t *testing.T) {
	run := sampleRuns()[0]
	output := string(ReportToText(run))

	for _, want := range []string{
		"Playlist: pl1",
		"Elapsed: 1m35s",
		"Desired:          10",
		"In library:       5",
		"Playlist entries: 9",
		"Run deadline exceeded",
		"  - tag: boom",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q, got:\n%s", want, output)
		}
	}

	clean := string(ReportToText(sampleRuns()[1]))
	if strings.Contains(clean, "Errors:") || strings.Contains(clean, "deadline") {
		t.Errorf("clean report should omit errors and deadline, got:\n%s", clean)
	}
}

func TestWriteExport(t *testing.T) {
	t.Run("writes file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.csv")
		written, err := WriteExport(path, []byte("a,b\n"))
		if err != nil || !written {
			t.Fatalf("WriteExport = %v, %v", written, err)
		}
		if got := tu.MustReadFile(t, path); got != "a,b\n" {
			t.Errorf("unexpected contents %q", got)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		written, err := WriteExport("", []byte("x"))
		if err != nil || written {
			t.Errorf("expected no write, got %v, %v", written, err)
		}
	})

	t.Run("bad directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.txt")
		if _, err := WriteExport(path, []byte("x")); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
