// Package asr wraps external speech recognition engines behind a single
// Transcriber interface. Engines convert an audio source into ordered,
// time-stamped text segments; everything downstream of them is pure.
package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Segment is one time-stamped span of recognized text.
type Segment struct {
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Result is the raw output of a transcription run.
type Result struct {
	Language string
	Segments []Segment
}

// Options mirror the per-job transcription options.
type Options struct {
	Model            string
	LanguageHint     string
	VADFilter        bool
	EnableSeparation bool
}

// Transcriber is the external speech recognition collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, audioSource string, opts Options) (Result, error)
}

// ErrorKind separates failures the worker should retry from those it must
// surface immediately.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient" // network, timeout, resource exhaustion
	KindPermanent ErrorKind = "permanent" // corrupt or unsupported audio
)

// Error is a classified transcription failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("transcription (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func transient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

func permanent(msg string, err error) *Error {
	return &Error{Kind: KindPermanent, Message: msg, Err: err}
}

// IsTransient reports whether err is a transcription failure worth retrying.
// Unclassified errors are treated as transient so a flaky engine never
// permanently fails a job on its own.
func IsTransient(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindTransient
	}
	return true
}

// Config selects and configures an engine.
type Config struct {
	Engine  string // whisper-api or whisper-cli
	APIURL  string
	APIKey  string
	Binary  string
	Model   string
	Timeout time.Duration
}

// New builds the configured Transcriber.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Engine {
	case "whisper-api", "":
		return NewWhisperAPI(cfg), nil
	case "whisper-cli":
		return NewWhisperCLI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown asr engine %q", cfg.Engine)
	}
}

// fetchSource resolves an audio source to a local file path, downloading
// http(s) URLs into a temp file. The returned cleanup is always callable.
func fetchSource(ctx context.Context, source string) (path string, cleanup func(), err error) {
	cleanup = func() {}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if _, err := os.Stat(source); err != nil {
			return "", cleanup, permanent("audio file not accessible", err)
		}
		return source, cleanup, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", cleanup, permanent("invalid audio URL", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", cleanup, transient("fetch audio", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", cleanup, transient(fmt.Sprintf("fetch audio: http %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 300 {
		return "", cleanup, permanent(fmt.Sprintf("fetch audio: http %d", resp.StatusCode), nil)
	}

	f, err := os.CreateTemp("", "lyriq-audio-*")
	if err != nil {
		return "", cleanup, transient("create temp file", err)
	}
	cleanup = func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", cleanup, transient("download audio", err)
	}
	if err := f.Close(); err != nil {
		return "", cleanup, transient("close temp file", err)
	}
	return f.Name(), cleanup, nil
}
