package organize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/mixbridge/internal/models"
	tu "github.com/desertthunder/mixbridge/internal/testing"
)

func TestResolve(t *testing.T) {
	expected := []models.Track{
		{Artist: "Daft Punk", Title: "Digital Love"},
		{Artist: "Sigur Rós", Title: "Hoppípolla"},
	}

	tests := []struct {
		name         string
		path         string
		tags         *models.Tags
		artist       string
		title        string
		resolverName string
	}{
		{
			name:         "tags contain an expected track",
			path:         "/in/u/01 track.mp3",
			tags:         &models.Tags{Artist: "Daft Punk feat. Someone", Title: "Digital Love (Album Version)"},
			artist:       "Daft Punk",
			title:        "Digital Love",
			resolverName: "tags-expected",
		},
		{
			name:         "filename matches an expected track",
			path:         "/in/u/02 - Sigur Ros - Hoppipolla.mp3",
			artist:       "Sigur Rós",
			title:        "Hoppípolla",
			resolverName: "filename-expected",
		},
		{
			name:         "tags win over filename for unexpected files",
			path:         "/in/u/Some - Name.mp3",
			tags:         &models.Tags{Artist: "Tag Artist", Title: "Tag Title (Radio Edit)"},
			artist:       "Tag Artist",
			title:        "Tag Title",
			resolverName: "tags",
		},
		{
			name:         "filename split",
			path:         "/in/u/File Artist - File Title (Extended Mix).mp3",
			tags:         &models.Tags{Artist: "Only Artist"},
			artist:       "File Artist",
			title:        "File Title",
			resolverName: "filename",
		},
		{
			name:         "unknown fallback",
			path:         "/in/u/track01.mp3",
			artist:       "Unknown",
			title:        "track01",
			resolverName: "unknown",
		},
		{
			name:         "unsafe characters are stripped",
			path:         "/in/u/x.mp3",
			tags:         &models.Tags{Artist: "AC/DC", Title: "What?"},
			artist:       "ACDC",
			title:        "What",
			resolverName: "tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artist, title, resolverName := Resolve(tt.path, tt.tags, expected)
			if artist != tt.artist || title != tt.title || resolverName != tt.resolverName {
				t.Errorf("Resolve(%q) = %q, %q, %q; want %q, %q, %q",
					tt.path, artist, title, resolverName, tt.artist, tt.title, tt.resolverName)
			}
		})
	}

	t.Run("expected tracks with empty fields are ignored", func(t *testing.T) {
		partial := []models.Track{{Artist: "", Title: "Digital Love"}, {Artist: "Daft Punk", Title: " "}}
		tags := &models.Tags{Artist: "Tag Artist", Title: "Tag Title"}

		artist, title, resolverName := Resolve("/in/u/Other - Name.mp3", tags, partial)
		if artist != "Tag Artist" || title != "Tag Title" || resolverName != "tags" {
			t.Errorf("Resolve() = %q, %q, %q; want tags resolver", artist, title, resolverName)
		}

		artist, title, resolverName = Resolve("/in/u/Other - Name.mp3", nil, partial)
		if artist != "Other" || title != "Name" || resolverName != "filename" {
			t.Errorf("Resolve() = %q, %q, %q; want filename resolver", artist, title, resolverName)
		}
	})
}

func TestOrganize(t *testing.T) {
	old := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	expected := []models.Track{{Artist: "Artist", Title: "Title"}}

	setup := func(t *testing.T) (intake, staging string, reader *tu.StubTagReader) {
		t.Helper()
		root := t.TempDir()
		intake, staging = filepath.Join(root, "intake"), filepath.Join(root, "staging")
		if err := os.MkdirAll(staging, 0755); err != nil {
			t.Fatal(err)
		}
		a := tu.WriteFile(t, intake, "peer1/Album/01 Artist - Title.mp3", "audio-a", old)
		tu.WriteFile(t, intake, "peer2/Other - Song.MP3", "audio-b", old)
		tu.WriteFile(t, intake, "peer2/cover.jpg", "img", time.Time{})
		reader = &tu.StubTagReader{Tags: map[string]*models.Tags{a: {Artist: "Artist", Title: "Title"}}}
		return intake, staging, reader
	}

	t.Run("copies, renames and purges", func(t *testing.T) {
		intake, staging, reader := setup(t)

		res, err := NewOrganizer(reader, Options{Format: "mp3", PurgeOnCopyFailure: true}, nil).
			Organize(context.Background(), intake, staging, expected)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if res.Copied != 2 || res.Duplicates != 0 || res.Failed != 0 {
			t.Errorf("unexpected counts %+v", res)
		}
		dest := filepath.Join(staging, "Artist - Title.mp3")
		if got := tu.MustReadFile(t, dest); got != "audio-a" {
			t.Errorf("unexpected content %q", got)
		}
		info, err := os.Stat(dest)
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(old) {
			t.Errorf("expected mtime %s, got %s", old, info.ModTime())
		}
		tu.AssertFileExists(t, filepath.Join(staging, "Other - Song.mp3"))

		if !res.Purged {
			t.Error("expected intake to be purged")
		}
		entries, _ := os.ReadDir(intake)
		if len(entries) != 0 {
			t.Errorf("expected empty intake, found %d entries", len(entries))
		}
		tu.AssertDirExists(t, intake)
	})

	t.Run("existing staged file is not overwritten", func(t *testing.T) {
		intake, staging, reader := setup(t)
		tu.WriteFile(t, staging, "Artist - Title.mp3", "original", time.Time{})

		res, err := NewOrganizer(reader, Options{Format: "mp3", PurgeOnCopyFailure: true}, nil).
			Organize(context.Background(), intake, staging, expected)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Duplicates != 1 || res.Copied != 1 {
			t.Errorf("unexpected counts %+v", res)
		}
		if got := tu.MustReadFile(t, filepath.Join(staging, "Artist - Title.mp3")); got != "original" {
			t.Errorf("staged file was overwritten: %q", got)
		}
	})

	t.Run("second run over the same downloads is idempotent", func(t *testing.T) {
		intake, staging, reader := setup(t)
		org := NewOrganizer(reader, Options{Format: "mp3", PurgeOnCopyFailure: true}, nil)
		if _, err := org.Organize(context.Background(), intake, staging, expected); err != nil {
			t.Fatal(err)
		}

		a := tu.WriteFile(t, intake, "peer1/Album/01 Artist - Title.mp3", "audio-new", old)
		reader.Tags[a] = &models.Tags{Artist: "Artist", Title: "Title"}
		res, err := org.Organize(context.Background(), intake, staging, expected)
		if err != nil {
			t.Fatal(err)
		}
		if res.Copied != 0 || res.Duplicates != 1 {
			t.Errorf("unexpected counts %+v", res)
		}
		entries, _ := os.ReadDir(staging)
		if len(entries) != 2 {
			t.Errorf("expected 2 staged files, got %d", len(entries))
		}
	})

	t.Run("copy failure keeps intake when purge policy is off", func(t *testing.T) {
		intake, staging, reader := setup(t)
		if err := os.Chmod(staging, 0o555); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { os.Chmod(staging, 0o755) })
		if f, err := os.Create(filepath.Join(staging, "probe")); err == nil {
			f.Close()
			t.Skip("running with permissions that ignore directory modes")
		}

		res, err := NewOrganizer(reader, Options{Format: "mp3", PurgeOnCopyFailure: false}, nil).
			Organize(context.Background(), intake, staging, expected)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Failed != 2 {
			t.Errorf("expected 2 failures, got %+v", res)
		}
		if !res.PurgeSkipped || res.Purged {
			t.Errorf("expected purge to be skipped, got %+v", res)
		}
		tu.AssertFileExists(t, filepath.Join(intake, "peer2", "Other - Song.MP3"))
	})

	t.Run("tag read errors fall back to filename", func(t *testing.T) {
		intake, staging, _ := setup(t)
		reader := &tu.StubTagReader{Errs: map[string]error{
			filepath.Join(intake, "peer1/Album/01 Artist - Title.mp3"): errors.New("corrupt"),
		}}

		res, err := NewOrganizer(reader, Options{Format: "mp3", PurgeOnCopyFailure: true}, nil).
			Organize(context.Background(), intake, staging, expected)
		if err != nil {
			t.Fatal(err)
		}
		if res.Files[0].Resolver != "filename-expected" {
			t.Errorf("expected filename-expected resolver, got %s", res.Files[0].Resolver)
		}
	})

	t.Run("missing directories", func(t *testing.T) {
		root := t.TempDir()
		org := NewOrganizer(&tu.StubTagReader{}, Options{Format: "mp3"}, nil)

		res, err := org.Organize(context.Background(), filepath.Join(root, "nope"), root, nil)
		if err != nil || len(res.Files) != 0 {
			t.Errorf("expected empty result, got %+v %v", res, err)
		}

		intake := filepath.Join(root, "intake")
		tu.WriteFile(t, intake, "a.mp3", "x", time.Time{})
		res, err = org.Organize(context.Background(), intake, filepath.Join(root, "nope"), nil)
		if err != nil || len(res.Files) != 0 {
			t.Errorf("expected empty result, got %+v %v", res, err)
		}
		tu.AssertFileExists(t, filepath.Join(intake, "a.mp3"))
	})
}
