package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/mixbridge/internal/library"
	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

// MatchMethod is the test that identified a staged file as already owned.
type MatchMethod string

const (
	MatchExactName    MatchMethod = "exact"
	MatchForwardFuzzy MatchMethod = "forward"
	MatchReverseFuzzy MatchMethod = "reverse"
)

// Duplicate is a staged file whose track is already in the library.
type Duplicate struct {
	File        string
	LibraryPath string
	Method      MatchMethod
	Removed     bool
}

// DedupeResult reports a duplicate cleanup pass.
type DedupeResult struct {
	Checked    int
	Duplicates []Duplicate
	Removed    int
	Failed     int
}

// Deduplicate removes staged files that the library index already holds. With dryRun set
// nothing is deleted.
func Deduplicate(ctx context.Context, dir, format string, ix *library.Index, dryRun bool, logger *log.Logger) (DedupeResult, error) {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	var res DedupeResult
	names, err := ListAudio(dir, format)
	if err != nil {
		return res, err
	}
	entries := ix.Entries()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		entry, method, ok := findOwned(name, entries)
		if !ok {
			continue
		}

		dup := Duplicate{File: name, LibraryPath: entry.Path, Method: method}
		logger.Info("duplicate found", "file", name, "library", entry.Path, "method", method)
		if !dryRun {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				res.Failed++
				logger.Error("failed to delete duplicate", "file", name, "error", err)
			} else {
				dup.Removed = true
				res.Removed++
			}
		}
		res.Duplicates = append(res.Duplicates, dup)
	}

	logger.Info("duplicate cleanup complete", "checked", res.Checked, "duplicates", len(res.Duplicates), "removed", res.Removed)
	return res, nil
}

// findOwned applies the exact, forward and reverse tests to each entry in turn and returns the
// first entry that passes any of them.
func findOwned(name string, entries []models.LibraryEntry) (models.LibraryEntry, MatchMethod, bool) {
	stem := matching.Stem(name)
	stemNorm := matching.Normalize(stem)
	artist, title, split := matching.SplitCanonical(stem)

	var q matching.Query
	if split {
		q = matching.NewQuery(artist, title)
	}

	for _, e := range entries {
		if e.CanonicalName != "" && stemNorm == matching.Normalize(matching.Stem(e.CanonicalName)) {
			return e, MatchExactName, true
		}

		if split && e.CanonicalName != "" && q.Matches(e.CanonicalName) {
			return e, MatchForwardFuzzy, true
		}

		if ka, kt, ok := strings.Cut(e.Key, " - "); ok && ka != "" && kt != "" {
			if strings.Contains(stemNorm, ka) && strings.Contains(stemNorm, kt) {
				return e, MatchReverseFuzzy, true
			}
		}
	}
	return models.LibraryEntry{}, "", false
}
