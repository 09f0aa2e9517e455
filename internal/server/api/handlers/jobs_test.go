package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/progress"
	"github.com/joefoxing/lyriq/internal/core/service"
)

// TestSubmitMapsInvalidInput verifies a rejected submission surfaces as a
// 400, not a 500.
func TestSubmitMapsInvalidInput(t *testing.T) {
	svc := service.New(&stubStore{jobs: map[string]*job.Job{}}, progress.NewPublisher(4))
	h := NewJobsHandler(svc)

	input := &SubmitJobInput{}
	input.Body.AudioSource = ""

	_, err := h.Submit(context.Background(), input)
	if err == nil {
		t.Fatal("Submit accepted an empty audio source")
	}
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusBadRequest {
		t.Fatalf("err = %v, want status 400", err)
	}
}

// TestGetMapsNotFound verifies unknown ids surface as a 404.
func TestGetMapsNotFound(t *testing.T) {
	svc := service.New(&stubStore{jobs: map[string]*job.Job{}}, progress.NewPublisher(4))
	h := NewJobsHandler(svc)

	_, err := h.Get(context.Background(), &JobIDInput{ID: "missing"})
	var se huma.StatusError
	if !errors.As(err, &se) || se.GetStatus() != http.StatusNotFound {
		t.Fatalf("err = %v, want status 404", err)
	}
}
