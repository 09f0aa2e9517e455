package asr

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// WhisperCLI runs a local whisper binary (whisper, whisperx, faster-whisper
// wrappers) that prints a JSON document with segments on stdout.
type WhisperCLI struct {
	binary  string
	model   string
	timeout time.Duration
}

func NewWhisperCLI(cfg Config) *WhisperCLI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "whisper"
	}
	return &WhisperCLI{binary: binary, model: cfg.Model, timeout: timeout}
}

type whisperCLIOut struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioSource string, opts Options) (Result, error) {
	path, cleanup, err := fetchSource(ctx, audioSource)
	defer cleanup()
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = w.model
	}
	args := []string{path, "--model", model, "--output_format", "json", "--output_dir", "-"}
	if opts.LanguageHint != "" {
		args = append(args, "--language", opts.LanguageHint)
	}
	if opts.VADFilter {
		args = append(args, "--vad_filter", "True")
	}

	cmd := exec.CommandContext(ctx, w.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, transient("transcription timed out", ctx.Err())
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return Result{}, permanent("whisper failed: "+strings.TrimSpace(string(ee.Stderr)), err)
		}
		return Result{}, transient("run whisper", err)
	}

	return ParseCLIOutput(out)
}

// ParseCLIOutput decodes the whisper JSON document into a Result.
func ParseCLIOutput(out []byte) (Result, error) {
	var parsed whisperCLIOut
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Result{}, permanent("parse whisper output", err)
	}

	res := Result{Language: parsed.Language}
	for _, s := range parsed.Segments {
		res.Segments = append(res.Segments, Segment{
			Text:    strings.TrimSpace(s.Text),
			StartMs: int64(s.Start * 1000),
			EndMs:   int64(s.End * 1000),
		})
	}
	return res, nil
}
