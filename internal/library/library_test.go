package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
	tu "github.com/desertthunder/mixbridge/internal/testing"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name, artist, title, want string
	}{
		{"plain", "Artist", "Title", "artist - title"},
		{"punctuation", "AC/DC", "T.N.T.", "ac dc - t n t"},
		{"noise removed", "Artist", "Title (Radio Edit)", "artist - title"},
		{"featuring removed", "Artist", "Title feat. Guest", "artist - title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFor(tt.artist, tt.title); got != tt.want {
				t.Errorf("KeyFor(%q, %q) = %q, want %q", tt.artist, tt.title, got, tt.want)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	entries := []models.LibraryEntry{
		{Key: "b artist - b title", Path: "/lib/b.mp3", CanonicalName: "B Artist - B Title.mp3"},
		{Key: "a artist - a title", Path: "/lib/a.mp3", CanonicalName: "A Artist - A Title.mp3"},
		{Key: "a artist - a title", Path: "/lib/a-copy.mp3", CanonicalName: "A Artist - A Title.mp3"},
	}

	t.Run("first entry wins on duplicate keys", func(t *testing.T) {
		ix := NewIndex(entries)
		if ix.Len() != 2 {
			t.Fatalf("expected 2 entries, got %d", ix.Len())
		}
		e, ok := ix.Lookup("a artist - a title")
		if !ok || e.Path != "/lib/a.mp3" {
			t.Errorf("expected /lib/a.mp3, got %+v (found=%v)", e, ok)
		}
	})

	t.Run("entries are returned in key order", func(t *testing.T) {
		got := NewIndex(entries).Entries()
		if got[0].Path != "/lib/a.mp3" || got[1].Path != "/lib/b.mp3" {
			t.Errorf("unexpected order: %+v", got)
		}
	})

	t.Run("legacy keys are re-normalized", func(t *testing.T) {
		ix := NewIndex([]models.LibraryEntry{{Key: "ac/dc - back in black", Path: "/lib/acdc.mp3"}})
		if _, ok := ix.Lookup(KeyFor("AC/DC", "Back In Black")); !ok {
			t.Error("expected legacy key to be reachable through KeyFor")
		}
	})

	t.Run("find scans canonical names", func(t *testing.T) {
		ix := NewIndex([]models.LibraryEntry{
			{Key: "artist - title live", Path: "/lib/live.mp3", CanonicalName: "Artist - Title Live.mp3"},
		})
		e, ok := ix.Find(matching.NewQuery("Artist", "Title"))
		if !ok || e.Path != "/lib/live.mp3" {
			t.Errorf("expected fuzzy hit, got %+v (found=%v)", e, ok)
		}
		if _, ok := ix.Find(matching.NewQuery("Other", "Song")); ok {
			t.Error("expected no match for unrelated query")
		}
	})

	t.Run("nil index is empty", func(t *testing.T) {
		var ix *Index
		if ix.Len() != 0 || ix.Entries() != nil {
			t.Error("nil index should be empty")
		}
		if _, ok := ix.Lookup("x"); ok {
			t.Error("nil index should not find anything")
		}
	})
}

func TestLoadSave(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.json")
		ix := NewIndex([]models.LibraryEntry{
			{Key: "artist - title", Path: "/lib/a.mp3", OriginalFilename: "01 a.mp3", CanonicalName: "Artist - Title.mp3"},
		})
		if err := ix.Save(path); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		e, ok := loaded.Lookup("artist - title")
		if !ok {
			t.Fatal("expected entry after round trip")
		}
		if e.OriginalFilename != "01 a.mp3" || e.CanonicalName != "Artist - Title.mp3" {
			t.Errorf("unexpected entry: %+v", e)
		}
	})

	t.Run("reads the scanner's file format", func(t *testing.T) {
		dir := t.TempDir()
		path := tu.WriteFile(t, dir, "index.json", `{
  "artist - title (radio edit)": {
    "path": "/music/Music/Artist/Title.mp3",
    "original_filename": "Title.mp3",
    "canonical_name": "Artist - Title (Radio Edit).mp3"
  }
}`, time.Time{})

		ix, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if _, ok := ix.Lookup(KeyFor("Artist", "Title")); !ok {
			t.Error("expected legacy key to be re-keyed")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		if !errors.Is(err, shared.ErrIndexNotFound) {
			t.Errorf("expected ErrIndexNotFound, got %v", err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := tu.WriteFile(t, t.TempDir(), "index.json", "{not json", time.Time{})
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestIndexer(t *testing.T) {
	root := t.TempDir()
	first := tu.WriteFile(t, root, "A/01.mp3", "x", time.Time{})
	dup := tu.WriteFile(t, root, "B/02.mp3", "x", time.Time{})
	untagged := tu.WriteFile(t, root, "C/03.mp3", "x", time.Time{})
	broken := tu.WriteFile(t, root, "C/04.mp3", "x", time.Time{})
	tu.WriteFile(t, root, "C/cover.jpg", "x", time.Time{})

	reader := &tu.StubTagReader{
		Tags: map[string]*models.Tags{
			first:    {Artist: "AC/DC", Title: "Thunderstruck (Remaster)"},
			dup:      {Artist: "AC/DC", Title: "Thunderstruck"},
			untagged: {Artist: "Someone"},
		},
		Errs: map[string]error{broken: errors.New("bad frame")},
	}

	t.Run("builds entries from tags", func(t *testing.T) {
		ix, stats, err := NewIndexer(reader, "mp3", nil).Build(context.Background(), []string{root, filepath.Join(root, "missing")})
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}

		if stats.Scanned != 4 {
			t.Errorf("expected 4 scanned, got %d", stats.Scanned)
		}
		if stats.Indexed != 1 || stats.Duplicates != 1 || stats.Untagged != 1 || stats.Unreadable != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}

		e, ok := ix.Lookup(KeyFor("AC/DC", "Thunderstruck"))
		if !ok {
			t.Fatal("expected entry for AC/DC")
		}
		if e.Path != first {
			t.Errorf("expected first file to win, got %s", e.Path)
		}
		if e.CanonicalName != "ACDC - Thunderstruck.mp3" {
			t.Errorf("unexpected canonical name %q", e.CanonicalName)
		}
		if e.OriginalFilename != "01.mp3" {
			t.Errorf("unexpected original filename %q", e.OriginalFilename)
		}
	})

	t.Run("writes the index file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "nested", "index.json")
		if _, err := NewIndexer(reader, "mp3", nil).BuildFile(context.Background(), []string{root}, out); err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("expected index file: %v", err)
		}
		ix, err := Load(out)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if ix.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", ix.Len())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, _, err := NewIndexer(reader, "mp3", nil).Build(ctx, []string{root}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
