package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

// TagReader reads embedded artist/title tags.
type TagReader interface {
	ReadTags(path string) (*models.Tags, error)
}

// IndexStats summarizes an indexer pass.
type IndexStats struct {
	Scanned    int // audio files visited
	Indexed    int // entries written
	Untagged   int // files missing artist or title
	Unreadable int // files whose tags could not be read
	Duplicates int // files whose key was already taken
}

// Indexer walks library roots and builds an [Index] from embedded tags.
type Indexer struct {
	reader TagReader
	format string
	logger *log.Logger
}

// NewIndexer creates an Indexer for files with the given extension.
func NewIndexer(reader TagReader, format string, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Indexer{reader: reader, format: format, logger: logger}
}

// Build scans every root. Missing roots are logged and skipped.
func (i *Indexer) Build(ctx context.Context, roots []string) (*Index, IndexStats, error) {
	var stats IndexStats
	var entries []models.LibraryEntry
	seen := make(map[string]bool)

	for _, root := range roots {
		if !shared.DirExists(root) {
			i.logger.Warn("library root not found", "path", root)
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				i.logger.Debug("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || !shared.HasExt(path, i.format) {
				return nil
			}
			stats.Scanned++

			tags, err := i.reader.ReadTags(path)
			if err != nil {
				stats.Unreadable++
				i.logger.Debug("failed to read tags", "path", path, "error", err)
				return nil
			}
			if !tags.Complete() {
				stats.Untagged++
				return nil
			}

			key := KeyFor(tags.Artist, tags.Title)
			if seen[key] {
				stats.Duplicates++
				return nil
			}
			seen[key] = true

			entries = append(entries, models.LibraryEntry{
				Key:              key,
				Path:             path,
				OriginalFilename: filepath.Base(path),
				CanonicalName:    matching.CanonicalFilename(matching.Clean(tags.Artist), matching.Clean(tags.Title), filepath.Ext(path)),
			})
			return nil
		})
		if err != nil {
			return nil, stats, err
		}
	}

	ix := NewIndex(entries)
	stats.Indexed = ix.Len()
	i.logger.Info("library scan complete", "scanned", stats.Scanned, "indexed", stats.Indexed)
	return ix, stats, nil
}

// BuildFile scans roots and writes the index to path.
func (i *Indexer) BuildFile(ctx context.Context, roots []string, path string) (IndexStats, error) {
	ix, stats, err := i.Build(ctx, roots)
	if err != nil {
		return stats, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return stats, err
	}
	return stats, ix.Save(path)
}
