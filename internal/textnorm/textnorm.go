// Package textnorm turns display strings (track, artist and album names) into
// comparison keys.
//
// Normalize produces the grouping key used to decide whether two catalog
// entries are the same song. Fold produces the looser key used when comparing
// a typed or spoken answer against candidates.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// qualifiers are release-variant words that do not change which song a title names.
const qualifiers = `deluxe|remix|remixed|remaster|remastered|edit|version|extended|radio|acoustic|live|instrumental|explicit`

var (
	bracketedQualifier = regexp.MustCompile(`[\(\[][^\)\]]*\b(?:` + qualifiers + `)\b[^\)\]]*[\)\]]`)
	dashedQualifier    = regexp.MustCompile(`\s+-\s+.*\b(?:` + qualifiers + `)\b.*$`)
	featuring          = regexp.MustCompile(`\b(?:featuring|feat\.?|ft\.?)(?:\s|$)`)
	punctuation        = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// Normalize returns the grouping key for a display string: lowercased,
// accent-free, without bracketed or dash-suffixed qualifiers, whitespace
// collapsed. A name made only of a qualifier normalizes to "".
func Normalize(raw string) string {
	s := stripMarks(strings.ToLower(raw))
	s = bracketedQualifier.ReplaceAllString(s, " ")
	s = dashedQualifier.ReplaceAllString(s, "")
	return collapse(s)
}

// Fold returns the comparison key for answer matching: lowercased,
// accent-free, featuring markers unified to "feat", punctuation dropped,
// whitespace collapsed. Qualifiers are kept since a player may type them.
func Fold(raw string) string {
	s := stripMarks(strings.ToLower(raw))
	s = featuring.ReplaceAllString(s, "feat ")
	s = punctuation.ReplaceAllString(s, "")
	return collapse(s)
}

// IsClean reports whether raw carries no qualifier that Normalize would strip.
// "Song" and "José" are clean, "Song (Remix)" is not.
func IsClean(raw string) bool {
	return Normalize(raw) == collapse(stripMarks(strings.ToLower(raw)))
}

func stripMarks(s string) string {
	// transform.Chain keeps state, so it cannot be shared between goroutines.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
