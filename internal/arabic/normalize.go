// Package arabic canonicalizes Arabic text before embedding or lexical
// comparison.
package arabic

import (
	"strings"
	"unicode"
)

// Combining marks used for short vowels and related signs.
const (
	tashkeelLow  = 'ً' // fathatan
	tashkeelHigh = 'ٟ' // wavy hamza below
	superAlef    = 'ٰ' // superscript alef
)

// Normalize strips diacritics, folds alif variants to bare alif, folds
// alif-maksura to yaa, and collapses whitespace. It is pure and idempotent;
// empty input yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r >= tashkeelLow && r <= tashkeelHigh, r == superAlef:
			continue
		case r == 'أ', r == 'إ', r == 'آ': // أ إ آ
			r = 'ا' // ا
		case r == 'ى': // ى
			r = 'ي' // ي
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize normalizes, splits on whitespace, and keeps tokens of at least two
// runes. Single-letter particles carry no lexical signal.
func Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// TokenSet returns the distinct tokens of s.
func TokenSet(s string) map[string]struct{} {
	tokens := Tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
