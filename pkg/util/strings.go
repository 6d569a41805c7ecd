package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// foldChain builds the transformer that reduces a string to a comparable
// form: fold full/half-width variants, decompose, strip combining marks
// (accents), recompose. Built per call because chained transformers carry
// state and are not safe for concurrent reuse.
func foldChain() transform.Transformer {
	return transform.Chain(width.Fold, norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeName returns s trimmed and reduced to its width- and
// accent-insensitive form. Case is preserved; compare with FoldEqual.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	out, _, err := transform.String(foldChain(), s)
	if err != nil {
		return s
	}
	return out
}

// FoldEqual reports whether two interface names are the same ignoring
// case, accents, and character width. This is the single source of truth
// for "is this port still carrying its hardware default name".
func FoldEqual(a, b string) bool {
	return strings.EqualFold(NormalizeName(a), NormalizeName(b))
}
