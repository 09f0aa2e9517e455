package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/progress"
)

// ReaperStore is the sweep surface of the job store.
type ReaperStore interface {
	FailExhausted(ctx context.Context) ([]string, error)
	FailTimedOut(ctx context.Context) ([]string, error)
	Get(ctx context.Context, jobID string) (*job.Job, error)
}

// Reaper periodically fails jobs whose retry budget is spent and jobs past
// their overall deadline, and emits their terminal events. Expired leases
// themselves need no sweep: the queue treats them as eligible again.
type Reaper struct {
	store    ReaperStore
	pub      Publisher
	interval time.Duration
}

func NewReaper(store ReaperStore, pub Publisher, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Reaper{store: store, pub: pub, interval: interval}
}

// Run blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over both failure conditions.
func (r *Reaper) Sweep(ctx context.Context) {
	exhausted, err := r.store.FailExhausted(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reaper: exhausted sweep failed")
	}
	for _, id := range exhausted {
		log.Warn().Str("job_id", id).Msg("retries exhausted")
		r.publishFailed(ctx, id)
	}

	timedOut, err := r.store.FailTimedOut(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reaper: timeout sweep failed")
	}
	for _, id := range timedOut {
		log.Warn().Str("job_id", id).Msg("job timed out")
		r.publishFailed(ctx, id)
	}
}

func (r *Reaper) publishFailed(ctx context.Context, jobID string) {
	ev := progress.Event{JobID: jobID, Status: job.StatusFailed}
	if j, err := r.store.Get(ctx, jobID); err == nil {
		ev.Progress = j.Progress
		if j.Error != nil {
			ev.Message = j.Error.Message
		}
	}
	r.pub.Publish(ev)
}
