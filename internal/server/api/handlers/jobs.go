package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/service"
)

type JobsHandler struct {
	svc *service.Service
}

func NewJobsHandler(svc *service.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

// --- Input types ---

type SubmitJobInput struct {
	Body struct {
		AudioSource      string `json:"audio_source" minLength:"1" doc:"Audio file path or URL"`
		Model            string `json:"model,omitempty" doc:"ASR model override"`
		LanguageHint     string `json:"language_hint,omitempty" doc:"BCP 47 language hint, e.g. vi or en-US"`
		VADFilter        bool   `json:"vad_filter,omitempty" doc:"Apply voice activity detection"`
		EnableSeparation bool   `json:"enable_separation,omitempty" doc:"Separate vocals before transcription"`
	}
}

type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

type ListJobsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"100" doc:"Max results"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

// --- DTO types ---

type JobDTO struct {
	ID          string `json:"id" doc:"Job ID"`
	Status      string `json:"status" doc:"Job status"`
	Stage       string `json:"stage,omitempty" doc:"Processing stage"`
	AudioSource string `json:"audio_source" doc:"Audio file path or URL"`
	Progress    int    `json:"progress" doc:"Progress 0-100"`
	Attempts    int    `json:"attempts" doc:"Lease attempts so far"`
	CreatedAt   string `json:"created_at" doc:"Submission time"`
	UpdatedAt   string `json:"updated_at" doc:"Last transition time"`

	Lyrics           string `json:"lyrics,omitempty" doc:"Final cleaned lyrics (completed jobs)"`
	RawTranscript    string `json:"raw_transcript,omitempty" doc:"Transcript before postprocessing"`
	DetectedLanguage string `json:"detected_language,omitempty" doc:"Language the engine detected"`

	ErrorKind    string `json:"error_kind,omitempty" doc:"Failure classification"`
	ErrorMessage string `json:"error_message,omitempty" doc:"Failure detail"`
}

type CancelDTO struct {
	ID     string `json:"id" doc:"Job ID"`
	Status string `json:"status" doc:"Status after the cancel request"`
}

type StatsDTO struct {
	Queued     int `json:"queued" doc:"Jobs waiting for a worker"`
	Processing int `json:"processing" doc:"Jobs currently leased"`
	Completed  int `json:"completed" doc:"Jobs finished successfully"`
	Failed     int `json:"failed" doc:"Jobs finished with an error"`
	Total      int `json:"total" doc:"All jobs"`
}

func toJobDTO(j *job.Job) JobDTO {
	dto := JobDTO{
		ID:          j.ID,
		Status:      string(j.Status),
		Stage:       string(j.Stage),
		AudioSource: j.AudioSource,
		Progress:    j.Progress,
		Attempts:    j.AttemptCount,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Result != nil {
		dto.Lyrics = j.Result.Lyrics
		dto.RawTranscript = j.Result.RawTranscript
		dto.DetectedLanguage = j.Result.DetectedLanguage
	}
	if j.Error != nil {
		dto.ErrorKind = string(j.Error.Kind)
		dto.ErrorMessage = j.Error.Message
	}
	return dto
}

// --- Handlers ---

func (h *JobsHandler) Submit(ctx context.Context, input *SubmitJobInput) (*DataOutput[JobDTO], error) {
	j, err := h.svc.Submit(ctx, input.Body.AudioSource, job.Options{
		Model:            input.Body.Model,
		LanguageHint:     input.Body.LanguageHint,
		VADFilter:        input.Body.VADFilter,
		EnableSeparation: input.Body.EnableSeparation,
	})
	if err != nil {
		if errors.Is(err, job.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return OK(toJobDTO(j)), nil
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*DataOutput[JobDTO], error) {
	j, err := h.svc.Get(ctx, input.ID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return OK(toJobDTO(j)), nil
}

func (h *JobsHandler) List(ctx context.Context, input *ListJobsInput) (*DataOutput[[]JobDTO], error) {
	jobs, err := h.svc.List(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	dtos := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toJobDTO(j)
	}
	return OK(dtos), nil
}

func (h *JobsHandler) Cancel(ctx context.Context, input *JobIDInput) (*DataOutput[CancelDTO], error) {
	status, err := h.svc.Cancel(ctx, input.ID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			return nil, huma.Error404NotFound(err.Error())
		case errors.Is(err, job.ErrInvalidInput):
			return nil, huma.Error409Conflict("job already finished")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return OK(CancelDTO{ID: input.ID, Status: string(status)}), nil
}

func (h *JobsHandler) Stats(ctx context.Context, _ *struct{}) (*DataOutput[StatsDTO], error) {
	counts, err := h.svc.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	dto := StatsDTO{
		Queued:     counts[job.StatusQueued],
		Processing: counts[job.StatusProcessing],
		Completed:  counts[job.StatusCompleted],
		Failed:     counts[job.StatusFailed],
	}
	dto.Total = dto.Queued + dto.Processing + dto.Completed + dto.Failed
	return OK(dto), nil
}
