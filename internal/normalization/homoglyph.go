// Package normalization provides text-normalization helpers used by the
// mechanical validation stage, grounded on internal/normalization.
// ParseInputString's lowercase + trim shape, extended with a
// Cyrillic→Latin homoglyph fold and non-alphanumeric stripping.
package normalization

import (
	"strings"
	"unicode"
)

// ParseInputString lower-cases and trims.
func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// homoglyphs maps visually-equivalent Cyrillic letters to their Latin
// look-alikes: а→a, в→b, е→e, к→k, м→m, н→h, о→o, р→p,
// с→c, т→t, у→y, х→x.
var homoglyphs = map[rune]rune{
	'а': 'a',
	'в': 'b',
	'е': 'e',
	'к': 'k',
	'м': 'm',
	'н': 'h',
	'о': 'o',
	'р': 'p',
	'с': 'c',
	'т': 't',
	'у': 'y',
	'х': 'x',
}

// FoldHomoglyphs case-folds, maps Cyrillic homoglyphs to Latin, and strips
// every non-alphanumeric rune. Applying it to both the articulum and the
// listing title/snippet makes "AB081595" match "ab081595", "АВ081595"
// (Cyrillic А and В), and "AB-081595" equally. Cyrillic letters with no
// entry in the table above (such as Л) are kept as they are.
func FoldHomoglyphs(input string) string {
	lower := strings.ToLower(input)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if mapped, ok := homoglyphs[r]; ok {
			r = mapped
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
