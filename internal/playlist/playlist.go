// Package playlist renders the extended M3U export of a sync run.
package playlist

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/desertthunder/mixbridge/internal/shared"
)

const header = "#EXTM3U"

// Playlist is an ordered list of entries: absolute library paths first, then staged
// filenames relative to the playlist's directory.
type Playlist struct {
	Entries []string
}

// Build orders library paths as given and staged names lexicographically.
func Build(libraryPaths, stagedNames []string) *Playlist {
	staged := append([]string(nil), stagedNames...)
	sort.Strings(staged)

	entries := make([]string, 0, len(libraryPaths)+len(staged))
	entries = append(entries, libraryPaths...)
	entries = append(entries, staged...)
	return &Playlist{Entries: entries}
}

// Len returns the number of entries.
func (p *Playlist) Len() int { return len(p.Entries) }

// WriteTo writes the M3U text.
func (p *Playlist) WriteTo(w io.Writer) (int64, error) {
	var n int64
	m, err := fmt.Fprintln(w, header)
	n += int64(m)
	if err != nil {
		return n, err
	}
	for _, e := range p.Entries {
		m, err := fmt.Fprintln(w, e)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Save replaces the file at path. An empty playlist writes nothing and reports false.
func (p *Playlist) Save(path string) (bool, error) {
	if p.Len() == 0 {
		return false, nil
	}

	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create playlist directory: %w", err)
	}
	if err := shared.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write playlist: %w", err)
	}
	return true, nil
}
