package job

import (
	"errors"
	"time"
)

// Status is the durable lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the sub-state of a processing job.
type Stage string

const (
	StageTranscribing   Stage = "transcribing"
	StagePostprocessing Stage = "postprocessing"
)

// ErrorKind classifies terminal job failures.
type ErrorKind string

const (
	KindTranscription    ErrorKind = "transcription"
	KindRetriesExhausted ErrorKind = "retries_exhausted"
	KindCancelled        ErrorKind = "cancelled"
	KindTimeout          ErrorKind = "timeout"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidInput is returned at submission time for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmpty is returned by Lease when no eligible job is queued.
	ErrEmpty = errors.New("no eligible jobs")

	// ErrLeaseLost is returned when the caller's lease has expired or been
	// taken over. The worker must abandon its in-flight work.
	ErrLeaseLost = errors.New("lease lost")
)

// Options configure the transcription of a single job. Defaults are applied
// by the submitting collaborator; empty values mean engine defaults.
type Options struct {
	Model            string `json:"model,omitempty"`
	LanguageHint     string `json:"language_hint,omitempty"`
	VADFilter        bool   `json:"vad_filter,omitempty"`
	EnableSeparation bool   `json:"enable_separation,omitempty"`
}

// Result holds the output of a completed job.
type Result struct {
	Lyrics           string `json:"lyrics"`
	RawTranscript    string `json:"raw_transcript"`
	DetectedLanguage string `json:"detected_language,omitempty"`
}

// JobError holds the failure recorded on a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Lease identifies the worker currently processing a job.
type Lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Job is the durable record; the job store is its source of truth.
type Job struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Stage        Stage     `json:"stage,omitempty"`
	AudioSource  string    `json:"audio_source"`
	Options      Options   `json:"options"`
	Progress     int       `json:"progress"`
	Result       *Result   `json:"result,omitempty"`
	Error        *JobError `json:"error,omitempty"`
	Lease        *Lease    `json:"-"`
	AttemptCount int       `json:"attempt_count"`
	MaxAttempts  int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
