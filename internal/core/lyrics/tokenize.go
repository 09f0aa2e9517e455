package lyrics

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lower-cased word tokens. Word characters are the
// full Unicode letter and digit classes plus apostrophes, so non-Latin
// scripts tokenize correctly.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
}
