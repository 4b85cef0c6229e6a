// Package library holds the read-only index of already-owned tracks and the full-rescan
// indexer that produces it.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
)

// KeyFor derives the index key of an artist/title pair. The indexer, the index loader and the
// reconciler all go through here so their keys agree.
func KeyFor(artist, title string) string {
	return matching.CanonicalKey(matching.Clean(artist), matching.Clean(title))
}

// rekey normalizes a key read from disk, which older indexers wrote as lowercased
// "artist - title" with punctuation intact.
func rekey(raw string) string {
	if artist, title, ok := strings.Cut(raw, " - "); ok {
		return KeyFor(artist, title)
	}
	return matching.Normalize(raw)
}

// Index maps canonical keys to library entries. It is never mutated after construction.
type Index struct {
	entries map[string]models.LibraryEntry
	keys    []string
}

// NewIndex builds an index from entries. Entries are re-keyed; on collision the first wins.
func NewIndex(entries []models.LibraryEntry) *Index {
	ix := &Index{entries: make(map[string]models.LibraryEntry, len(entries))}
	for _, e := range entries {
		e.Key = rekey(e.Key)
		if _, dup := ix.entries[e.Key]; dup {
			continue
		}
		ix.entries[e.Key] = e
		ix.keys = append(ix.keys, e.Key)
	}
	sort.Strings(ix.keys)
	return ix
}

// Load reads an index file written by [Index.Save] or by the original scanner.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("failed to read library index: %w", err)
	}

	var raw map[string]models.LibraryEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse library index: %w", err)
	}

	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	entries := make([]models.LibraryEntry, 0, len(raw))
	for _, k := range rawKeys {
		e := raw[k]
		e.Key = k
		entries = append(entries, e)
	}
	return NewIndex(entries), nil
}

// Save writes the index as a JSON object keyed by canonical key.
func (ix *Index) Save(path string) error {
	data, err := shared.MarshalJSON(ix.entries, true)
	if err != nil {
		return fmt.Errorf("failed to encode library index: %w", err)
	}
	return shared.WriteFileAtomic(path, data, 0644)
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.keys)
}

// Lookup returns the entry stored under key.
func (ix *Index) Lookup(key string) (models.LibraryEntry, bool) {
	if ix == nil {
		return models.LibraryEntry{}, false
	}
	e, ok := ix.entries[key]
	return e, ok
}

// Find scans entries in key order and returns the first whose canonical name matches q.
func (ix *Index) Find(q matching.Query) (models.LibraryEntry, bool) {
	if ix == nil {
		return models.LibraryEntry{}, false
	}
	for _, k := range ix.keys {
		e := ix.entries[k]
		name := e.CanonicalName
		if name == "" {
			name = k
		}
		if q.Matches(name) {
			return e, true
		}
	}
	return models.LibraryEntry{}, false
}

// Entries returns the entries in key order.
func (ix *Index) Entries() []models.LibraryEntry {
	if ix == nil {
		return nil
	}
	out := make([]models.LibraryEntry, 0, len(ix.keys))
	for _, k := range ix.keys {
		out = append(out, ix.entries[k])
	}
	return out
}
