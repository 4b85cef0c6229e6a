// Package organize moves freshly downloaded files from the intake area into the staging
// directory under canonical "Artist - Title.ext" names.
package organize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

const unknownArtist = "Unknown"

// TagReader reads embedded artist/title tags.
type TagReader interface {
	ReadTags(path string) (*models.Tags, error)
}

// Action is what happened to one intake file.
type Action int

const (
	Copied Action = iota
	Duplicate
	Failed
)

func (a Action) String() string {
	switch a {
	case Copied:
		return "copied"
	case Duplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// FileResult records the handling of one intake file.
type FileResult struct {
	Source   string
	Dest     string
	Resolver string
	Action   Action
	Err      error
}

// Result summarizes an organizer pass.
type Result struct {
	Files        []FileResult
	Copied       int
	Duplicates   int
	Failed       int
	Purged       bool
	PurgeSkipped bool
}

// Options configures an [Organizer].
type Options struct {
	Format string
	// PurgeOnCopyFailure empties the intake area even when some copies failed.
	PurgeOnCopyFailure bool
}

// Organizer resolves intake files to canonical names and copies them into staging.
type Organizer struct {
	reader TagReader
	opts   Options
	logger *log.Logger
}

// NewOrganizer creates an Organizer.
func NewOrganizer(reader TagReader, opts Options, logger *log.Logger) *Organizer {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Organizer{reader: reader, opts: opts, logger: logger}
}

// Organize copies every target-format file under intake into staging, then purges intake.
// expected is the set of tracks queued for download this run. A missing intake or staging
// directory yields an empty result.
func (o *Organizer) Organize(ctx context.Context, intake, staging string, expected []models.Track) (Result, error) {
	var res Result

	if !shared.DirExists(intake) {
		o.logger.Warn("intake directory not found", "path", intake)
		return res, nil
	}
	if !shared.DirExists(staging) {
		o.logger.Warn("staging directory not found", "path", staging)
		return res, nil
	}

	err := filepath.WalkDir(intake, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			o.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !shared.HasExt(path, o.opts.Format) {
			return nil
		}

		fr := o.organizeFile(path, staging, expected)
		switch fr.Action {
		case Copied:
			res.Copied++
			o.logger.Info("copied to staging", "from", filepath.Base(path), "to", filepath.Base(fr.Dest), "resolver", fr.Resolver)
		case Duplicate:
			res.Duplicates++
			o.logger.Info("skipping, already staged", "file", filepath.Base(fr.Dest))
		case Failed:
			res.Failed++
			o.logger.Error("failed to copy", "from", path, "error", fr.Err)
		}
		res.Files = append(res.Files, fr)
		return nil
	})
	if err != nil {
		return res, err
	}

	if res.Failed > 0 && !o.opts.PurgeOnCopyFailure {
		res.PurgeSkipped = true
		o.logger.Warn("leaving intake in place after copy failures", "failed", res.Failed)
		return res, nil
	}

	if err := purge(intake); err != nil {
		o.logger.Error("failed to purge intake", "path", intake, "error", err)
		return res, nil
	}
	res.Purged = true
	o.logger.Info("organized intake", "copied", res.Copied, "duplicates", res.Duplicates, "failed", res.Failed)
	return res, nil
}

func (o *Organizer) organizeFile(path, staging string, expected []models.Track) FileResult {
	tags, err := o.reader.ReadTags(path)
	if err != nil {
		o.logger.Debug("could not read tags", "file", filepath.Base(path), "error", err)
		tags = nil
	}

	artist, title, resolver := Resolve(path, tags, expected)
	name := matching.CanonicalFilename(artist, title, strings.ToLower(filepath.Ext(path)))
	dest := filepath.Join(staging, name)

	fr := FileResult{Source: path, Dest: dest, Resolver: resolver}
	switch err := copyFile(path, dest); {
	case err == nil:
		fr.Action = Copied
	case errors.Is(err, fs.ErrExist):
		fr.Action = Duplicate
	default:
		fr.Action, fr.Err = Failed, err
	}
	return fr
}

type resolver struct {
	name string
	fn   func(stem string, tags *models.Tags, expected []models.Track) (string, string, bool)
}

// resolvers run in order; the first that succeeds names the file.
var resolvers = []resolver{
	{"tags-expected", func(_ string, tags *models.Tags, expected []models.Track) (string, string, bool) {
		if !tags.Complete() {
			return "", "", false
		}
		ta, tt := strings.ToLower(tags.Artist), strings.ToLower(tags.Title)
		for _, tr := range expected {
			if !complete(tr) {
				continue
			}
			if strings.Contains(ta, strings.ToLower(tr.Artist)) && strings.Contains(tt, strings.ToLower(tr.Title)) {
				return tr.Artist, tr.Title, true
			}
		}
		return "", "", false
	}},
	{"filename-expected", func(stem string, _ *models.Tags, expected []models.Track) (string, string, bool) {
		for _, tr := range expected {
			if complete(tr) && matching.Matches(stem, tr.Artist, tr.Title) {
				return tr.Artist, tr.Title, true
			}
		}
		return "", "", false
	}},
	{"tags", func(_ string, tags *models.Tags, _ []models.Track) (string, string, bool) {
		if !tags.Complete() {
			return "", "", false
		}
		return matching.Clean(tags.Artist), matching.Clean(tags.Title), true
	}},
	{"filename", func(stem string, _ *models.Tags, _ []models.Track) (string, string, bool) {
		a, t, ok := matching.SplitCanonical(stem)
		if !ok {
			return "", "", false
		}
		return matching.Clean(a), matching.Clean(t), true
	}},
}

// complete reports whether tr can anchor a match; an empty field would contain every name.
func complete(tr models.Track) bool {
	return strings.TrimSpace(tr.Artist) != "" && strings.TrimSpace(tr.Title) != ""
}

// Resolve names an intake file. tags may be nil. The returned values are sanitized for use
// in a filename and never empty.
func Resolve(path string, tags *models.Tags, expected []models.Track) (artist, title, resolver string) {
	stem := matching.Stem(path)
	for _, r := range resolvers {
		a, t, ok := r.fn(stem, tags, expected)
		if !ok {
			continue
		}
		a, t = matching.SanitizeFilename(a), matching.SanitizeFilename(t)
		if a != "" && t != "" {
			return a, t, r.name
		}
	}

	title = matching.SanitizeFilename(matching.Clean(stem))
	if title == "" {
		title = matching.SanitizeFilename(stem)
	}
	return unknownArtist, title, "unknown"
}

// copyFile copies src to dst, failing with fs.ErrExist if dst is already present. The copy
// keeps src's modification time.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err = out.Sync(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// purge removes everything inside dir, leaving dir itself.
func purge(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
