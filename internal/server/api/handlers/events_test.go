package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/progress"
	"github.com/joefoxing/lyriq/internal/core/service"
)

type stubStore struct {
	jobs map[string]*job.Job
}

func (s *stubStore) Submit(ctx context.Context, audioSource string, opts job.Options) (*job.Job, error) {
	return nil, job.ErrInvalidInput
}

func (s *stubStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j, nil
}

func (s *stubStore) RequestCancel(ctx context.Context, jobID string) (job.Status, error) {
	return "", job.ErrNotFound
}

func (s *stubStore) List(ctx context.Context, limit, offset int) ([]*job.Job, error) {
	return nil, nil
}

func (s *stubStore) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	return nil, nil
}

func streamRequest(t *testing.T, h *EventsHandler, jobID string) (*httptest.ResponseRecorder, chan error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/lyrics/"+jobID+"/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(jobID)

	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()
	return rec, done
}

func TestStreamUnknownJob(t *testing.T) {
	svc := service.New(&stubStore{jobs: map[string]*job.Job{}}, progress.NewPublisher(8))
	h := NewEventsHandler(svc)

	rec, done := streamRequest(t, h, "missing")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stream: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not return")
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStreamTerminalSnapshot(t *testing.T) {
	st := &stubStore{jobs: map[string]*job.Job{
		"j1": {
			ID:       "j1",
			Status:   job.StatusCompleted,
			Progress: 100,
			Result:   &job.Result{Lyrics: "hello world again"},
		},
	}}
	pub := progress.NewPublisher(8)
	h := NewEventsHandler(service.New(st, pub))

	rec, done := streamRequest(t, h, "j1")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after terminal snapshot")
	}

	body := rec.Body.String()
	if got := strings.Count(body, "event: progress"); got != 1 {
		t.Fatalf("events = %d, want exactly 1", got)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Fatalf("body = %q", body)
	}
	if pub.SubscriberCount("j1") != 0 {
		t.Fatal("subscription leaked")
	}
}

func TestStreamLiveEvents(t *testing.T) {
	st := &stubStore{jobs: map[string]*job.Job{
		"j1": {ID: "j1", Status: job.StatusProcessing, Stage: job.StageTranscribing, Progress: 40},
	}}
	pub := progress.NewPublisher(8)
	h := NewEventsHandler(service.New(st, pub))

	rec, done := streamRequest(t, h, "j1")

	deadline := time.Now().Add(2 * time.Second)
	for pub.SubscriberCount("j1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	pub.Publish(progress.Event{JobID: "j1", Status: job.StatusProcessing, Progress: 70})
	pub.Publish(progress.Event{JobID: "j1", Status: job.StatusCompleted, Progress: 100, Message: "lyrics ready"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after terminal event")
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"progress":40`) {
		t.Fatalf("missing snapshot event: %q", body)
	}
	if !strings.Contains(body, `"progress":70`) {
		t.Fatalf("missing live event: %q", body)
	}
	if got := strings.Count(body, `"status":"completed"`); got != 1 {
		t.Fatalf("terminal events = %d, want 1", got)
	}
}

func TestJobDTOMapping(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j := &job.Job{
		ID:           "j1",
		Status:       job.StatusFailed,
		AudioSource:  "/audio/song.mp3",
		Progress:     10,
		AttemptCount: 3,
		Error:        &job.JobError{Kind: job.KindRetriesExhausted, Message: "engine busy"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	dto := toJobDTO(j)
	if dto.ErrorKind != "retries_exhausted" || dto.ErrorMessage != "engine busy" {
		t.Fatalf("dto error = %q %q", dto.ErrorKind, dto.ErrorMessage)
	}
	if dto.Lyrics != "" {
		t.Fatalf("lyrics = %q, want empty for failed job", dto.Lyrics)
	}
	if dto.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Fatalf("created_at = %q", dto.CreatedAt)
	}
}
