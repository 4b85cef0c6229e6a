// Package tagging reads and rewrites ID3v2 metadata of staged audio files.
package tagging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bogem/id3v2/v2"
	"github.com/charmbracelet/log"
	"github.com/djherbis/times"

	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

const (
	frameAlbumArtist = "TPE2"
	frameCompilation = "TCMP"
)

// Reader reads artist and title frames.
type Reader struct{}

// ReadTags returns the artist and title stored in path. Missing frames are empty strings.
func (Reader) ReadTags(path string) (*models.Tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Artist", "Title"}})
	if err != nil {
		return nil, fmt.Errorf("failed to open tags: %w", err)
	}
	defer tag.Close()

	return &models.Tags{Artist: tag.Artist(), Title: tag.Title()}, nil
}

// Options are the fixed values written to every staged file.
type Options struct {
	Album       string
	AlbumArtist string
	Format      string
}

// Stats counts the outcome of [Normalizer.NormalizeDir].
type Stats struct {
	Tagged int
	Failed int
}

// Normalizer rewrites the tags of staged files so they group as one compilation album.
type Normalizer struct {
	opts   Options
	logger *log.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts Options, logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Normalizer{opts: opts, logger: logger}
}

// NormalizeDir rewrites every target-format file directly inside dir. A missing dir is not an
// error. Per-file failures are logged and counted.
func (n *Normalizer) NormalizeDir(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	if !shared.DirExists(dir) {
		n.logger.Warn("staging directory not found", "path", dir)
		return stats, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("failed to list staging directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if e.IsDir() || !shared.HasExt(e.Name(), n.opts.Format) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if err := n.Normalize(path); err != nil {
			stats.Failed++
			n.logger.Error("failed to update tags", "file", e.Name(), "error", err)
			continue
		}
		stats.Tagged++
		n.logger.Debug("updated tags", "file", e.Name())
	}

	n.logger.Info("tags updated", "tagged", stats.Tagged, "failed", stats.Failed)
	return stats, nil
}

// Normalize replaces all frames of path with artist and title from its filename plus the
// album fields. Attached pictures and the file's access and modification times survive.
func (n *Normalizer) Normalize(path string) error {
	ts, err := times.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	atime, mtime := ts.AccessTime(), ts.ModTime()

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open tags: %w", err)
	}
	defer tag.Close()

	artist, title := n.identity(path, tag)

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	tag.DeleteAllFrames()
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	for _, f := range pictures {
		if pic, ok := f.(id3v2.PictureFrame); ok {
			tag.AddAttachedPicture(pic)
		}
	}

	if artist != "" {
		tag.SetArtist(artist)
	}
	tag.SetTitle(title)
	tag.SetAlbum(n.opts.Album)
	tag.AddTextFrame(frameAlbumArtist, id3v2.EncodingUTF8, n.opts.AlbumArtist)
	tag.AddTextFrame(frameCompilation, id3v2.EncodingUTF8, "1")

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}

	if err := os.Chtimes(path, atime, mtime); err != nil {
		return fmt.Errorf("failed to restore timestamps: %w", err)
	}
	return nil
}

// identity derives artist and title from the canonical filename, falling back to the existing
// frames and finally to the bare filename.
func (n *Normalizer) identity(path string, tag *id3v2.Tag) (artist, title string) {
	stem := matching.Stem(path)
	if a, t, ok := matching.SplitCanonical(stem); ok {
		return a, t
	}
	artist, title = tag.Artist(), tag.Title()
	if title == "" {
		title = stem
	}
	return artist, title
}
