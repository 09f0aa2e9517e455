package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable job store and FIFO queue, backed by a single jobs
// table. Lease, Complete, Fail and RenewLease are serializable per job: the
// queue pop runs as one UPDATE over a FOR UPDATE SKIP LOCKED selection, and
// every mutation by a worker is guarded by a lease ownership predicate.
type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
	jobTimeout  time.Duration
}

func NewStore(pool *pgxpool.Pool, maxAttempts int, jobTimeout time.Duration) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Store{pool: pool, maxAttempts: maxAttempts, jobTimeout: jobTimeout}
}

const jobColumns = `id, status, stage, audio_source, model, language_hint, vad_filter,
	enable_separation, progress, lyrics, raw_transcript, detected_language,
	error_kind, error_message, lease_owner, lease_expires_at, attempt_count,
	max_attempts, created_at, updated_at`

// Submit creates a queued job and makes it eligible for leasing.
func (s *Store) Submit(ctx context.Context, audioSource string, opts Options) (*Job, error) {
	if strings.TrimSpace(audioSource) == "" {
		return nil, fmt.Errorf("%w: audio_source is empty", ErrInvalidInput)
	}

	id := uuid.NewString()
	var deadline *time.Time
	if s.jobTimeout > 0 {
		d := time.Now().Add(s.jobTimeout)
		deadline = &d
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, audio_source, model, language_hint, vad_filter,
			enable_separation, max_attempts, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+jobColumns,
		id, audioSource, opts.Model, opts.LanguageHint, opts.VADFilter,
		opts.EnableSeparation, s.maxAttempts, deadline)

	return scanJob(row)
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

// Lease atomically pops the oldest eligible job (queued, or processing with
// an expired lease), marks it processing, records the lease and increments
// the attempt counter. Jobs whose attempt budget is spent are left for the
// reaper. Returns ErrEmpty when nothing is eligible.
func (s *Store) Lease(ctx context.Context, workerID string, d time.Duration) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM jobs
			WHERE (status = 'queued'
				OR (status = 'processing' AND lease_expires_at < NOW()))
				AND attempt_count < max_attempts
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs j SET
			status = 'processing',
			stage = 'transcribing',
			lease_owner = $1,
			lease_expires_at = NOW() + make_interval(secs => $2),
			attempt_count = attempt_count + 1,
			updated_at = NOW()
		FROM next
		WHERE j.id = next.id
		RETURNING `+prefixed("j", jobColumns),
		workerID, d.Seconds())

	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmpty
	}
	return j, err
}

// RenewLease extends an active lease and reports whether cancellation has
// been requested. Returns ErrLeaseLost if the lease expired or was reclaimed.
func (s *Store) RenewLease(ctx context.Context, jobID, workerID string, d time.Duration) (cancelRequested bool, err error) {
	err = s.pool.QueryRow(ctx, `
		UPDATE jobs SET lease_expires_at = NOW() + make_interval(secs => $3), updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2
			AND status = 'processing' AND lease_expires_at > NOW()
		RETURNING cancel_requested`,
		jobID, workerID, d.Seconds()).Scan(&cancelRequested)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrLeaseLost
	}
	return cancelRequested, err
}

// SetProgress records progress and the current stage. Progress never
// decreases. Lease ownership is checked so a usurped worker cannot write.
func (s *Store) SetProgress(ctx context.Context, jobID, workerID string, progress int, stage Stage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET progress = GREATEST(progress, $3), stage = $4, updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2
			AND status = 'processing' AND lease_expires_at > NOW()`,
		jobID, workerID, progress, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Complete transitions a job to completed with its result, if and only if
// the caller still holds a valid lease.
func (s *Store) Complete(ctx context.Context, jobID, workerID string, res Result) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'completed',
			stage = '',
			progress = 100,
			lyrics = $3,
			raw_transcript = $4,
			detected_language = $5,
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2
			AND status = 'processing' AND lease_expires_at > NOW()`,
		jobID, workerID, res.Lyrics, res.RawTranscript, res.DetectedLanguage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Fail transitions a job to failed, if and only if the caller still holds a
// valid lease.
func (s *Store) Fail(ctx context.Context, jobID, workerID string, kind ErrorKind, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET
			status = 'failed',
			stage = '',
			error_kind = $3,
			error_message = $4,
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2
			AND status = 'processing' AND lease_expires_at > NOW()`,
		jobID, workerID, kind, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release gives a job back to the queue after a transient failure. The
// attempt stays counted; with the attempt budget spent the job instead goes
// straight to failed with kind retries_exhausted. Returns the resulting
// status so the caller can emit a terminal event when needed.
func (s *Store) Release(ctx context.Context, jobID, workerID string) (Status, error) {
	var status Status
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			status = CASE WHEN attempt_count >= max_attempts THEN 'failed' ELSE 'queued' END,
			error_kind = CASE WHEN attempt_count >= max_attempts THEN 'retries_exhausted' ELSE error_kind END,
			error_message = CASE WHEN attempt_count >= max_attempts
				THEN 'transcription failed after ' || attempt_count || ' attempts'
				ELSE error_message END,
			stage = '',
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND lease_owner = $2 AND status = 'processing'
		RETURNING status`,
		jobID, workerID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrLeaseLost
	}
	return status, err
}

// RequestCancel flags a job for cooperative cancellation. A queued job is
// failed immediately; a processing job is cancelled by its worker at the
// next lease renewal. Returns the job's current status.
func (s *Store) RequestCancel(ctx context.Context, jobID string) (Status, error) {
	var status Status
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET
			cancel_requested = TRUE,
			status = CASE WHEN status = 'queued' THEN 'failed' ELSE status END,
			error_kind = CASE WHEN status = 'queued' THEN 'cancelled' ELSE error_kind END,
			error_message = CASE WHEN status = 'queued' THEN 'cancelled before processing' ELSE error_message END,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'processing')
		RETURNING status`,
		jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already terminal or unknown; distinguish for the caller.
		if _, getErr := s.Get(ctx, jobID); getErr != nil {
			return "", getErr
		}
		return "", fmt.Errorf("%w: job already terminal", ErrInvalidInput)
	}
	return status, err
}

// List returns jobs in reverse submission order.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountByStatus returns job counts keyed by status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// FailExhausted fails jobs whose lease expired with no attempts left.
// Returns the affected job ids so terminal events can be emitted.
func (s *Store) FailExhausted(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE jobs SET
			status = 'failed',
			stage = '',
			error_kind = 'retries_exhausted',
			error_message = 'transcription failed after ' || attempt_count || ' attempts',
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE status = 'processing' AND lease_expires_at < NOW()
			AND attempt_count >= max_attempts
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// FailTimedOut fails jobs past their overall deadline regardless of lease
// state. Returns the affected job ids.
func (s *Store) FailTimedOut(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE jobs SET
			status = 'failed',
			stage = '',
			error_kind = 'timeout',
			error_message = 'job exceeded its overall deadline',
			lease_owner = NULL,
			lease_expires_at = NULL,
			updated_at = NOW()
		WHERE status IN ('queued', 'processing') AND deadline < NOW()
		RETURNING id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j                        Job
		lyrics, rawTranscript    *string
		detectedLanguage         *string
		errorKind, errorMessage  *string
		leaseOwner               *string
		leaseExpiresAt           *time.Time
	)

	err := row.Scan(
		&j.ID, &j.Status, &j.Stage, &j.AudioSource,
		&j.Options.Model, &j.Options.LanguageHint, &j.Options.VADFilter,
		&j.Options.EnableSeparation, &j.Progress,
		&lyrics, &rawTranscript, &detectedLanguage,
		&errorKind, &errorMessage,
		&leaseOwner, &leaseExpiresAt,
		&j.AttemptCount, &j.MaxAttempts,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if j.Status == StatusCompleted && lyrics != nil {
		j.Result = &Result{Lyrics: *lyrics}
		if rawTranscript != nil {
			j.Result.RawTranscript = *rawTranscript
		}
		if detectedLanguage != nil {
			j.Result.DetectedLanguage = *detectedLanguage
		}
	}
	if j.Status == StatusFailed && errorKind != nil {
		j.Error = &JobError{Kind: ErrorKind(*errorKind)}
		if errorMessage != nil {
			j.Error.Message = *errorMessage
		}
	}
	if leaseOwner != nil && leaseExpiresAt != nil {
		j.Lease = &Lease{Owner: *leaseOwner, ExpiresAt: *leaseExpiresAt}
	}
	return &j, nil
}

// prefixed qualifies a comma separated column list with a table alias, for
// UPDATE ... RETURNING over a joined CTE.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
