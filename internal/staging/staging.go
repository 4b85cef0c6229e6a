// Package staging manages the staging directory: listing staged audio, age-based eviction and
// removal of files the library already owns.
package staging

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/mixbridge/internal/shared"
)

// ListAudio returns the sorted names of target-format files directly inside dir. A missing
// directory lists as empty.
func ListAudio(dir, format string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list staging directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !shared.HasExt(e.Name(), format) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SweepResult reports a retention pass.
type SweepResult struct {
	Removed []string
	Failed  int
	Bytes   int64
}

// Sweeper evicts staged files by age.
type Sweeper struct {
	retention time.Duration
	exclude   map[string]bool
	logger    *log.Logger
}

// NewSweeper creates a Sweeper that removes files older than days. days <= 0 disables it.
// Paths in exclude are never removed.
func NewSweeper(days int, exclude []string, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	s := &Sweeper{
		retention: time.Duration(days) * 24 * time.Hour,
		exclude:   make(map[string]bool, len(exclude)),
		logger:    logger,
	}
	for _, p := range exclude {
		s.exclude[filepath.Clean(p)] = true
	}
	return s
}

// Sweep walks dir recursively and deletes every file last modified before now minus the
// retention. Deletion failures are logged and counted.
func (s *Sweeper) Sweep(ctx context.Context, dir string, now time.Time) (SweepResult, error) {
	var res SweepResult
	if s.retention <= 0 {
		s.logger.Debug("retention sweep disabled")
		return res, nil
	}
	if !shared.DirExists(dir) {
		s.logger.Warn("staging directory not found", "path", dir)
		return res, nil
	}

	cutoff := now.Add(-s.retention)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || s.exclude[filepath.Clean(path)] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Failed++
			s.logger.Error("failed to stat file", "path", path, "error", err)
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			res.Failed++
			s.logger.Error("failed to delete old file", "path", path, "error", err)
			return nil
		}
		res.Removed = append(res.Removed, path)
		res.Bytes += info.Size()
		s.logger.Info("deleted old file", "file", filepath.Base(path), "modified", info.ModTime().Format(time.DateOnly))
		return nil
	})
	if err != nil {
		return res, err
	}

	s.logger.Info("retention sweep complete", "removed", len(res.Removed), "failed", res.Failed)
	return res, nil
}
