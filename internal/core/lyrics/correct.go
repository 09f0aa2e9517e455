package lyrics

import (
	"regexp"
	"strings"
)

// rule is a single substitution applied during language-aware correction.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// correctionRules is a fixed table keyed by primary language subtag.
// Languages without an entry pass through unchanged.
var correctionRules = map[string][]rule{
	"en": {
		// whisper frequently emits a lower-case standalone "i"
		{regexp.MustCompile(`(?m)(^|[\s(])i([\s),.!?']|$)`), "${1}I${2}"},
		{regexp.MustCompile(`\bim\b`), "I'm"},
		{regexp.MustCompile(`\bdont\b`), "don't"},
		{regexp.MustCompile(`\bcant\b`), "can't"},
		{regexp.MustCompile(`\bwont\b`), "won't"},
	},
	"de": {
		// ASR drops the sharp s in common words
		{regexp.MustCompile(`\bstrasse\b`), "straße"},
		{regexp.MustCompile(`\bweiss\b`), "weiß"},
	},
	"fr": {
		{regexp.MustCompile(`\bca\b`), "ça"},
	},
}

// Correct applies per-language cleanup rules to each line. The language code
// may carry a region ("en-US"); only the primary subtag selects rules.
// Unknown or empty codes pass through unchanged.
func Correct(text, langCode string) string {
	primary := strings.ToLower(langCode)
	if i := strings.IndexAny(primary, "-_"); i >= 0 {
		primary = primary[:i]
	}

	rules, ok := correctionRules[primary]
	if !ok {
		return text
	}

	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}
