package matching

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/rainycape/unidecode"
)

const keywords = `(?:radio|edit|mix|remix|remaster|feat|ft|feature|extended|club|original|vocal|version)`

var (
	bracketedNoise = regexp.MustCompile(`(?i)\s*[(\[][^()\[\]]*?\b` + keywords + `\b[^()\[\]]*?[)\]]`)
	trailingNoise  = regexp.MustCompile(`(?i)\s+-\s+.*?\b` + keywords + `\b.*$`)
	trailingFeat   = regexp.MustCompile(`(?i)\s+(?:feat|ft|feature)\.?\s+.*$`)
)

var unsafeChars = strings.NewReplacer(
	"<", "",
	">", "",
	":", "",
	"\"", "",
	"/", "",
	"\\", "",
	"|", "",
	"?", "",
	"*", "",
)

// Normalize lowercases s, turns every rune that is not a letter, digit or space into a space,
// and collapses whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, strings.ToLower(s))
	return strings.Join(strings.Fields(mapped), " ")
}

// Clean removes release noise: bracketed spans mentioning a mix/edit/feat keyword (innermost
// first, repeated until nothing changes), a trailing " - ... Remix" style suffix and a trailing
// "feat. Name". Brackets left unbalanced by a removal are dropped.
func Clean(s string) string {
	removed := false
	for {
		next := bracketedNoise.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s, removed = next, true
	}
	if removed {
		s = dropUnbalanced(s)
	}
	s = trailingNoise.ReplaceAllString(s, "")
	s = trailingFeat.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// dropUnbalanced removes brackets that have no partner.
func dropUnbalanced(s string) string {
	rs := []rune(s)
	keep := make([]bool, len(rs))
	var open []int
	for i, r := range rs {
		keep[i] = true
		switch r {
		case '(', '[':
			open = append(open, i)
		case ')', ']':
			want := '('
			if r == ']' {
				want = '['
			}
			if n := len(open); n > 0 && rs[open[n-1]] == want {
				open = open[:n-1]
			} else {
				keep[i] = false
			}
		}
	}
	for _, i := range open {
		keep[i] = false
	}

	var b strings.Builder
	for i, r := range rs {
		if keep[i] {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fold transliterates s to an ASCII approximation.
func Fold(s string) string {
	return unidecode.Unidecode(s)
}

// SanitizeFilename strips characters that are unsafe in filenames.
func SanitizeFilename(s string) string {
	return strings.TrimSpace(unsafeChars.Replace(s))
}

// CanonicalKey is the cross-stage identity of a track: "artist - title" in normalized form.
func CanonicalKey(artist, title string) string {
	return Normalize(artist) + " - " + Normalize(title)
}

// CanonicalFilename builds the staged filename "Artist - Title.ext".
func CanonicalFilename(artist, title, ext string) string {
	return SanitizeFilename(artist) + " - " + SanitizeFilename(title) + ext
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SplitCanonical splits "Artist - Title" on the first separator. ok is false unless both halves are non-empty.
func SplitCanonical(stem string) (artist, title string, ok bool) {
	artist, title, found := strings.Cut(stem, " - ")
	if !found {
		return "", "", false
	}
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	return artist, title, artist != "" && title != ""
}

// Query holds the precomputed forms of an artist/title pair so it can be tested
// against many candidates.
type Query struct {
	artist, title             string
	foldedArtist, foldedTitle string
}

// NewQuery prepares artist and title for repeated [Query.Matches] calls.
func NewQuery(artist, title string) Query {
	return Query{
		artist:       Normalize(artist),
		title:        Normalize(title),
		foldedArtist: Normalize(Fold(artist)),
		foldedTitle:  Normalize(Fold(title)),
	}
}

// Matches reports whether candidate contains both the artist and the title, directly or after
// transliteration.
func (q Query) Matches(candidate string) bool {
	norm := Normalize(candidate)
	if strings.Contains(norm, q.artist) && strings.Contains(norm, q.title) {
		return true
	}
	folded := Normalize(Fold(candidate))
	return strings.Contains(folded, q.foldedArtist) && strings.Contains(folded, q.foldedTitle)
}

// Matches reports whether candidateText contains both artist and title.
func Matches(candidateText, artist, title string) bool {
	return NewQuery(artist, title).Matches(candidateText)
}
