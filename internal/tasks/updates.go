package tasks

import (
	"fmt"

	"github.com/desertthunder/mixbridge/internal/acquire"
	"github.com/desertthunder/mixbridge/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Run phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Run phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	Reconcile
	Acquire
	Settle
	Organize
	Tag
	BuildPlaylist
	Sweep
	Record
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case Reconcile:
		return "reconcile"
	case Acquire:
		return "acquire"
	case Settle:
		return "settle"
	case Organize:
		return "organize"
	case Tag:
		return "tag"
	case BuildPlaylist:
		return "build_playlist"
	case Sweep:
		return "sweep"
	case Record:
		return "record"
	default:
		return ""
	}
}

func fetchSourceUpdate(ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Message: fmt.Sprintf("Fetching source playlist (%s)...", ref),
	}
}

func reconcileUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase: Reconcile,
		Step:  report.MatchedLibrary + report.MatchedStaging,
		Total: report.Desired,
		Message: fmt.Sprintf("%d tracks: %d in library, %d staged, %d missing",
			report.Desired, report.MatchedLibrary, report.MatchedStaging, report.Missing),
	}
}

func acquireUpdate(step, total int, tr acquire.TrackResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Acquire,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, tr.Track, tr.Outcome),
		Data:    tr,
	}
}

func settleUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Settle,
		Message: fmt.Sprintf("Waiting for %d downloads to land...", report.Downloaded),
	}
}

func organizeUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Organize,
		Step:    report.Organized,
		Total:   report.Organized + report.Duplicates + report.CopyFailures,
		Message: fmt.Sprintf("Organized %d files (%d duplicates, %d failed)", report.Organized, report.Duplicates, report.CopyFailures),
	}
}

func tagUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Tag,
		Step:    report.Tagged,
		Message: fmt.Sprintf("Normalized tags on %d files", report.Tagged),
	}
}

func playlistUpdate(report *models.RunReport, path string, written bool) ProgressUpdate {
	msg := fmt.Sprintf("Wrote %d entries to %s", report.PlaylistEntries, path)
	if !written {
		msg = "Nothing to export, playlist left untouched"
	}
	return ProgressUpdate{
		Phase:   BuildPlaylist,
		Step:    report.PlaylistEntries,
		Message: msg,
	}
}

func sweepUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sweep,
		Step:    report.Swept,
		Message: fmt.Sprintf("Removed %d expired files", report.Swept),
	}
}

func recordUpdate(report *models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Record,
		Message: fmt.Sprintf("Run #%d recorded", report.Sequence),
		Data:    report,
	}
}
