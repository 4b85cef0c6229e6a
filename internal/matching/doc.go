// Package matching is the string engine every mixbridge stage shares.
//
// [Normalize] produces the comparison form (lowercase, punctuation to spaces, collapsed whitespace);
// [Clean] strips release noise such as "(Radio Edit)" or "feat. X";
// [Matches] is the asymmetric containment test used to pair filenames with tracks, with a second
// pass over an ASCII transliteration so Cyrillic and Latin spellings of a name still pair up.
//
// Containment has no similarity threshold: very short artist or title strings match almost anything.
package matching
