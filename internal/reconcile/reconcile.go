// Package reconcile classifies desired tracks as staged, library-resident or missing.
package reconcile

import (
	"github.com/desertthunder/mixbridge/internal/library"
	"github.com/desertthunder/mixbridge/internal/matching"
	"github.com/desertthunder/mixbridge/internal/models"
)

// Resolution is how a desired track was satisfied.
type Resolution int

const (
	Missing Resolution = iota
	Staged
	LibraryExact
	LibraryFuzzy
)

func (r Resolution) String() string {
	switch r {
	case Staged:
		return "staged"
	case LibraryExact:
		return "library"
	case LibraryFuzzy:
		return "library (fuzzy)"
	default:
		return "missing"
	}
}

// Outcome records the resolution of one track.
type Outcome struct {
	Track      models.Track
	Resolution Resolution
	Path       string // library path or staged filename
}

// Result is the output of [Reconcile]. Slices preserve source order.
type Result struct {
	LibraryPaths []string
	Missing      []models.Track
	Outcomes     []Outcome
	Staged       int
	Library      int
}

// Reconcile checks each track against staged filenames, then the exact index key, then a fuzzy
// index scan. The first hit wins. The index is only read.
func Reconcile(tracks []models.Track, ix *library.Index, staged []string) Result {
	res := Result{Outcomes: make([]Outcome, 0, len(tracks))}

	for _, track := range tracks {
		out := resolve(track, ix, staged)
		switch out.Resolution {
		case Staged:
			res.Staged++
		case LibraryExact, LibraryFuzzy:
			res.Library++
			res.LibraryPaths = append(res.LibraryPaths, out.Path)
		default:
			res.Missing = append(res.Missing, track)
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res
}

func resolve(track models.Track, ix *library.Index, staged []string) Outcome {
	q := matching.NewQuery(track.Artist, track.Title)

	for _, name := range staged {
		if q.Matches(name) {
			return Outcome{Track: track, Resolution: Staged, Path: name}
		}
	}

	if e, ok := ix.Lookup(library.KeyFor(track.Artist, track.Title)); ok {
		return Outcome{Track: track, Resolution: LibraryExact, Path: e.Path}
	}

	if e, ok := ix.Find(q); ok {
		return Outcome{Track: track, Resolution: LibraryFuzzy, Path: e.Path}
	}

	return Outcome{Track: track, Resolution: Missing}
}
