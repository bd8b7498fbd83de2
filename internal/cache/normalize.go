package cache

import (
	"strings"
	"unicode"
)

// Normalize returns the fingerprint of an utterance.
//
// Letters are lower-cased, whitespace runs collapse to one space, and ASCII
// punctuation is dropped except '%', an apostrophe between two letters
// ("what's" keeps it, "'lights'" does not) and a decimal point between two
// digits ("72.5" stays distinct from "72 5").
//
//	Normalize("  Turn ON the lights!! ") == "turn on the lights"
func Normalize(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case r == '\'':
			if i == 0 || i == len(runes)-1 || !unicode.IsLetter(runes[i-1]) || !unicode.IsLetter(runes[i+1]) {
				continue
			}
		case r == '.':
			if i == 0 || i == len(runes)-1 || !unicode.IsDigit(runes[i-1]) || !unicode.IsDigit(runes[i+1]) {
				space = true
				continue
			}
		case r == '%':
		case r < unicode.MaxASCII && unicode.IsPunct(r), r < unicode.MaxASCII && unicode.IsSymbol(r):
			// Punctuation separates words like whitespace does.
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
