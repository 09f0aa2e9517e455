// Package worker drives leased jobs through the transcription state machine:
// lease, transcribe with periodic lease renewal, postprocess, complete. All
// observable side effects are job store mutations and progress events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joefoxing/lyriq/internal/core/asr"
	"github.com/joefoxing/lyriq/internal/core/job"
	"github.com/joefoxing/lyriq/internal/core/lyrics"
	"github.com/joefoxing/lyriq/internal/core/progress"
)

// Store is the subset of the job store a worker mutates. Every method is
// lease-guarded; job.ErrLeaseLost means the worker must abandon the job.
type Store interface {
	Lease(ctx context.Context, workerID string, d time.Duration) (*job.Job, error)
	RenewLease(ctx context.Context, jobID, workerID string, d time.Duration) (bool, error)
	SetProgress(ctx context.Context, jobID, workerID string, progress int, stage job.Stage) error
	Complete(ctx context.Context, jobID, workerID string, res job.Result) error
	Fail(ctx context.Context, jobID, workerID string, kind job.ErrorKind, message string) error
	Release(ctx context.Context, jobID, workerID string) (job.Status, error)
}

// Publisher receives progress events for live subscribers.
type Publisher interface {
	Publish(ev progress.Event)
}

type Config struct {
	Count         int
	LeaseDuration time.Duration
	PollInterval  time.Duration
	Postprocess   lyrics.Config
}

// Pool runs a fixed number of workers drawing from the shared queue.
type Pool struct {
	store       Store
	transcriber asr.Transcriber
	pub         Publisher
	cfg         Config
	idPrefix    string
}

func NewPool(store Store, transcriber asr.Transcriber, pub Publisher, cfg Config) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = 4
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "lyriq"
	}
	return &Pool{
		store:       store,
		transcriber: transcriber,
		pub:         pub,
		cfg:         cfg,
		idPrefix:    hostname,
	}
}

// Run starts the workers and blocks until ctx is cancelled and all workers
// have drained their current job.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 1; i <= p.cfg.Count; i++ {
		w := &worker{
			id:          fmt.Sprintf("%s-%d", p.idPrefix, i),
			store:       p.store,
			transcriber: p.transcriber,
			pub:         p.pub,
			cfg:         p.cfg,
		}
		go func() {
			defer func() { done <- struct{}{} }()
			w.run(ctx)
		}()
	}
	for i := 0; i < p.cfg.Count; i++ {
		<-done
	}
}

type worker struct {
	id          string
	store       Store
	transcriber asr.Transcriber
	pub         Publisher
	cfg         Config
}

func (w *worker) run(ctx context.Context) {
	log.Info().Str("worker_id", w.id).Msg("worker started")
	defer log.Info().Str("worker_id", w.id).Msg("worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		j, err := w.store.Lease(ctx, w.id, w.cfg.LeaseDuration)
		if errors.Is(err, job.ErrEmpty) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("worker_id", w.id).Msg("lease failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}

		w.process(ctx, j)
	}
}

// errCancelRequested propagates a cooperative cancel from the renewal loop.
var errCancelRequested = errors.New("cancellation requested")

func (w *worker) process(ctx context.Context, j *job.Job) {
	logger := log.With().Str("worker_id", w.id).Str("job_id", j.ID).
		Int("attempt", j.AttemptCount).Logger()
	logger.Info().Str("source", j.AudioSource).Msg("processing job")

	if err := w.progress(ctx, j.ID, 10, job.StageTranscribing, "transcription started"); err != nil {
		logger.Warn().Err(err).Msg("abandoning job")
		return
	}

	// Renew the lease in the background while the long transcription call
	// runs. Renewal is also the cancellation checkpoint.
	renewCtx, cancel := context.WithCancelCause(ctx)
	stopRenew := make(chan struct{})
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		w.renewLoop(renewCtx, j.ID, cancel, stopRenew)
	}()

	res, trErr := w.transcriber.Transcribe(renewCtx, j.AudioSource, asr.Options{
		Model:            j.Options.Model,
		LanguageHint:     j.Options.LanguageHint,
		VADFilter:        j.Options.VADFilter,
		EnableSeparation: j.Options.EnableSeparation,
	})
	close(stopRenew)
	<-renewDone

	switch cause := context.Cause(renewCtx); {
	case errors.Is(cause, errCancelRequested):
		w.fail(ctx, j.ID, job.KindCancelled, "cancelled by request")
		return
	case errors.Is(cause, job.ErrLeaseLost):
		logger.Warn().Msg("lease lost during transcription, abandoning")
		return
	}
	cancel(nil)

	if trErr != nil {
		if asr.IsTransient(trErr) {
			logger.Warn().Err(trErr).Msg("transient transcription failure, releasing for retry")
			status, err := w.store.Release(ctx, j.ID, w.id)
			if err != nil {
				logger.Warn().Err(err).Msg("release failed")
				return
			}
			if status == job.StatusFailed {
				logger.Warn().Msg("retries exhausted")
				w.pub.Publish(progress.Event{
					JobID:   j.ID,
					Status:  job.StatusFailed,
					Message: "transcription failed after " + fmt.Sprint(j.AttemptCount) + " attempts",
				})
			}
			return
		}
		logger.Warn().Err(trErr).Msg("permanent transcription failure")
		w.fail(ctx, j.ID, job.KindTranscription, trErr.Error())
		return
	}

	if err := w.progress(ctx, j.ID, 40, job.StageTranscribing, "transcription finished"); err != nil {
		logger.Warn().Err(err).Msg("abandoning job")
		return
	}
	if err := w.progress(ctx, j.ID, 70, job.StagePostprocessing, "postprocessing"); err != nil {
		logger.Warn().Err(err).Msg("abandoning job")
		return
	}

	lang := res.Language
	if lang == "" {
		lang = j.Options.LanguageHint
	}

	out, err := lyrics.Process(res.Segments, lang, w.cfg.Postprocess)
	if err != nil {
		// A transcript below the word threshold will not improve on retry.
		w.fail(ctx, j.ID, job.KindTranscription, "no usable lyrics detected: "+err.Error())
		return
	}

	if err := w.store.Complete(ctx, j.ID, w.id, job.Result{
		Lyrics:           out.Lyrics,
		RawTranscript:    out.RawTranscript,
		DetectedLanguage: out.Language,
	}); err != nil {
		logger.Warn().Err(err).Msg("complete rejected, abandoning result")
		return
	}

	w.pub.Publish(progress.Event{
		JobID:    j.ID,
		Status:   job.StatusCompleted,
		Progress: 100,
		Message:  "lyrics ready",
	})
	logger.Info().Str("language", out.Language).Msg("job completed")
}

// renewLoop extends the lease at a third of its duration and checks the
// cooperative cancellation flag at each renewal point.
func (w *worker) renewLoop(ctx context.Context, jobID string, cancel context.CancelCauseFunc, stop <-chan struct{}) {
	interval := w.cfg.LeaseDuration / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			cancelRequested, err := w.store.RenewLease(ctx, jobID, w.id, w.cfg.LeaseDuration)
			if errors.Is(err, job.ErrLeaseLost) {
				cancel(job.ErrLeaseLost)
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("job_id", jobID).Msg("lease renewal failed")
				continue
			}
			if cancelRequested {
				cancel(errCancelRequested)
				return
			}
		}
	}
}

// progress persists a progress step and mirrors it to live subscribers.
func (w *worker) progress(ctx context.Context, jobID string, pct int, stage job.Stage, msg string) error {
	if err := w.store.SetProgress(ctx, jobID, w.id, pct, stage); err != nil {
		return err
	}
	w.pub.Publish(progress.Event{
		JobID:    jobID,
		Status:   job.StatusProcessing,
		Stage:    stage,
		Progress: pct,
		Message:  msg,
	})
	return nil
}

// fail records a terminal failure and emits the terminal event. A lost lease
// means another worker owns the job now; the failure is discarded silently.
func (w *worker) fail(ctx context.Context, jobID string, kind job.ErrorKind, msg string) {
	if err := w.store.Fail(ctx, jobID, w.id, kind, msg); err != nil {
		if !errors.Is(err, job.ErrLeaseLost) {
			log.Warn().Err(err).Str("job_id", jobID).Msg("fail transition rejected")
		}
		return
	}
	w.pub.Publish(progress.Event{
		JobID:   jobID,
		Status:  job.StatusFailed,
		Message: msg,
	})
}
