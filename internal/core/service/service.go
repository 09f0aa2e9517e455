// Package service ties the job store and the progress publisher together
// behind the operations the API exposes.
package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/progress"
)

// Store is the persistence surface the service needs.
type Store interface {
	Submit(ctx context.Context, audioSource string, opts job.Options) (*job.Job, error)
	Get(ctx context.Context, jobID string) (*job.Job, error)
	RequestCancel(ctx context.Context, jobID string) (job.Status, error)
	List(ctx context.Context, limit, offset int) ([]*job.Job, error)
	CountByStatus(ctx context.Context) (map[job.Status]int, error)
}

type Service struct {
	store Store
	pub   *progress.Publisher
}

func New(store Store, pub *progress.Publisher) *Service {
	return &Service{store: store, pub: pub}
}

// Submit enqueues a new extraction job and announces it to subscribers.
func (s *Service) Submit(ctx context.Context, audioSource string, opts job.Options) (*job.Job, error) {
	j, err := s.store.Submit(ctx, audioSource, opts)
	if err != nil {
		return nil, err
	}
	log.Info().Str("job_id", j.ID).Str("source", audioSource).Msg("job submitted")
	s.pub.Publish(progress.Event{
		JobID:   j.ID,
		Status:  job.StatusQueued,
		Message: "job accepted",
	})
	return j, nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*job.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Cancel requests cancellation. A queued job fails immediately; a processing
// job is flagged and fails at the worker's next renewal checkpoint.
func (s *Service) Cancel(ctx context.Context, jobID string) (job.Status, error) {
	status, err := s.store.RequestCancel(ctx, jobID)
	if err != nil {
		return "", err
	}
	if status == job.StatusFailed {
		// The job never reached a worker, so the terminal event is ours
		// to publish.
		s.pub.Publish(progress.Event{
			JobID:   jobID,
			Status:  job.StatusFailed,
			Message: "cancelled by request",
		})
	}
	log.Info().Str("job_id", jobID).Str("status", string(status)).Msg("cancellation requested")
	return status, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*job.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

// Stats reports job counts per status.
func (s *Service) Stats(ctx context.Context) (map[job.Status]int, error) {
	return s.store.CountByStatus(ctx)
}

// Subscribe attaches a live progress stream for a job. The caller owns the
// subscription and must Close it. job.ErrNotFound is returned for unknown
// ids so a bad id does not hold an idle stream open.
func (s *Service) Subscribe(ctx context.Context, jobID string) (*progress.Subscription, *job.Job, error) {
	// Subscribe before the snapshot read so no event between the two is
	// lost; events already covered by the snapshot carry a lower Seq and
	// are filtered by the caller.
	sub := s.pub.Subscribe(jobID)
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		sub.Close()
		return nil, nil, err
	}
	return sub, j, nil
}
