// Package lyrics turns raw time-stamped transcript segments into clean final
// lyrics: formatting, Unicode-aware repetition removal, tokenization for
// quality heuristics, and language-aware correction. Everything here is pure.
package lyrics

import (
	"errors"
	"strings"

	"github.com/joefoxing/lyriq/internal/core/asr"
)

// ErrTooShort is returned when the cleaned transcript holds fewer words than
// the configured minimum; no usable lyrics were recognized.
var ErrTooShort = errors.New("transcript below minimum word count")

// Config carries the postprocessing tunables. Window and MinRepeatLength
// bound the dedup heuristic and are validated by property tests rather than
// fixed in code.
type Config struct {
	Window          int
	MinRepeatLength int
	MinWords        int
}

// DefaultConfig matches the service configuration defaults.
func DefaultConfig() Config {
	return Config{Window: 1, MinRepeatLength: 8, MinWords: 3}
}

// Output is the final product of the pipeline.
type Output struct {
	Lyrics        string
	RawTranscript string
	Language      string
}

// Process runs the full pipeline over ordered ASR segments. langCode is the
// detected language when the engine reports one, otherwise the caller's hint.
// Lyrics and RawTranscript keep one line per surviving segment, joined with
// newlines.
func Process(segments []asr.Segment, langCode string, cfg Config) (Output, error) {
	lines := Format(segments)
	raw := strings.Join(lines, "\n")

	deduped := Dedup(lines, cfg.Window, cfg.MinRepeatLength)
	text := Correct(strings.Join(deduped, "\n"), langCode)

	if cfg.MinWords > 0 && len(Tokenize(text)) < cfg.MinWords {
		return Output{RawTranscript: raw, Language: langCode}, ErrTooShort
	}

	return Output{
		Lyrics:        text,
		RawTranscript: raw,
		Language:      langCode,
	}, nil
}

// Format joins segments into transcript lines, one line per segment, in
// segment order. Empty segments are dropped.
func Format(segments []asr.Segment) []string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return lines
}
