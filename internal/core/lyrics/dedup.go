package lyrics

import (
	"strings"
	"unicode"
)

// NormalizeLine canonicalizes a line for repetition comparison only; it is
// never used for output text. Lower-cases, keeps letters (full Unicode
// classes), digits, apostrophes and spaces, and collapses whitespace runs.
func NormalizeLine(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// Dedup removes consecutive repetitions that ASR engines produce: adjacent
// lines whose normalized forms are equal, or where one is a prefix or suffix
// repetition of the other beyond minRepeat runes, are merged keeping the
// line with more content. Lines are compared against up to window previous
// kept lines. The pass is repeated until stable, so Dedup(Dedup(x)) == Dedup(x).
func Dedup(lines []string, window, minRepeat int) []string {
	if window < 1 {
		window = 1
	}
	kept := lines
	for {
		next, changed := dedupOnce(kept, window, minRepeat)
		if !changed {
			return next
		}
		kept = next
	}
}

func dedupOnce(lines []string, window, minRepeat int) ([]string, bool) {
	kept := make([]string, 0, len(lines))
	changed := false

	for _, line := range lines {
		norm := NormalizeLine(line)
		if norm == "" {
			changed = true
			continue
		}

		merged := false
		for i := len(kept) - 1; i >= 0 && i >= len(kept)-window; i-- {
			prev := NormalizeLine(kept[i])
			if prev == norm {
				merged = true
				break
			}
			if repeats(prev, norm, minRepeat) {
				if len([]rune(norm)) > len([]rune(prev)) {
					kept[i] = line
				}
				merged = true
				break
			}
		}
		if merged {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	return kept, changed
}

// repeats reports whether the shorter of two normalized lines is a prefix or
// suffix of the longer and long enough to be a real repetition rather than a
// coincidental overlap.
func repeats(a, b string, minRepeat int) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len([]rune(short)) < minRepeat {
		return false
	}
	return strings.HasPrefix(long, short) || strings.HasSuffix(long, short)
}
