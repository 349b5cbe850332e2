package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// ErrJobNotFound is returned when a translation id has no job row.
var ErrJobNotFound = errors.New("translation job not found")

// JobRepo reads and writes translation_jobs and checkpoint_chunks.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a repository on top of an open store.
func NewJobRepo(s *Store) *JobRepo { return &JobRepo{db: s.DB()} }

// CreateJob inserts a new job row in status running.
func (r *JobRepo) CreateJob(ctx context.Context, job *Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = StatusRunning
	}
	progress, err := marshalProgress(job.Progress)
	if err != nil {
		return err
	}
	const q = `INSERT INTO translation_jobs
		(translation_id, status, file_type, file_name, config, progress, translation_context, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		job.TranslationID,
		job.Status,
		job.FileType,
		job.FileName,
		rawOrEmpty(job.Config),
		progress,
		rawOrEmpty(job.TranslationContext),
		job.CreatedAt,
		job.UpdatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: create job: %w", err)
	}
	return nil
}

// GetJob loads one job by translation id.
func (r *JobRepo) GetJob(ctx context.Context, translationID string) (*Job, error) {
	const q = `SELECT translation_id, status, file_type, file_name, config, progress, translation_context, created_at, updated_at, paused_at, completed_at
		FROM translation_jobs WHERE translation_id = ?`
	return scanJob(r.db.QueryRowContext(ctx, q, translationID))
}

// ListFilter narrows ListJobs. Nil fields match everything.
type ListFilter struct {
	Status   *JobStatus
	FileType *string
	Limit    int
}

// ListJobs returns jobs newest-first, optionally filtered by status and
// file type.
func (r *JobRepo) ListJobs(ctx context.Context, filter *ListFilter) ([]*Job, error) {
	sb := squirrel.Select("translation_id", "status", "file_type", "file_name", "config", "progress", "translation_context", "created_at", "updated_at", "paused_at", "completed_at").
		From("translation_jobs").
		OrderBy("created_at DESC")
	if filter != nil {
		if filter.Status != nil {
			sb = sb.Where("status = ?", *filter.Status)
		}
		if filter.FileType != nil {
			sb = sb.Where("file_type = ?", *filter.FileType)
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	q, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter jobs: %w", err)
	}
	return out, nil
}

// UpdateJobStatus transitions a job's lifecycle state and stamps the
// matching timestamp column: paused_at for paused and interrupted,
// completed_at for completed.
func (r *JobRepo) UpdateJobStatus(ctx context.Context, translationID string, status JobStatus) error {
	now := time.Now().UTC()
	ub := squirrel.Update("translation_jobs").
		Set("status", status).
		Set("updated_at", now).
		Where(squirrel.Eq{"translation_id": translationID})
	switch status {
	case StatusPaused, StatusInterrupted:
		ub = ub.Set("paused_at", now)
	case StatusCompleted:
		ub = ub.Set("completed_at", now)
	}
	q, args, err := ub.ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build status update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update job status: %w", err)
	}
	return requireRow(res, "update job status")
}

// DeleteJob removes a job; chunk rows go with it via cascade.
func (r *JobRepo) DeleteJob(ctx context.Context, translationID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM translation_jobs WHERE translation_id = ?`, translationID)
	if err != nil {
		return fmt.Errorf("sqlite: delete job: %w", err)
	}
	return requireRow(res, "delete job")
}

// GetChunks returns a job's chunk rows ordered by chunk index.
func (r *JobRepo) GetChunks(ctx context.Context, translationID string) ([]*ChunkRecord, error) {
	const q = `SELECT translation_id, chunk_index, original_text, translated_text, chunk_data, status, completed_at
		FROM checkpoint_chunks WHERE translation_id = ? ORDER BY chunk_index`
	rows, err := r.db.QueryContext(ctx, q, translationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get chunks: %w", err)
	}
	defer rows.Close()

	var out []*ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var translated sql.NullString
		var chunkData string
		var completedAt sql.NullTime
		if err := rows.Scan(&c.TranslationID, &c.ChunkIndex, &c.OriginalText,
			&translated, &chunkData, &c.Status, &completedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		c.TranslatedText = translated.String
		c.ChunkData = json.RawMessage(chunkData)
		if completedAt.Valid {
			t := completedAt.Time
			c.CompletedAt = &t
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter chunks: %w", err)
	}
	return out, nil
}

// LastCompletedIndex returns the highest chunk index with a persisted
// outcome, or -1 when no chunk has been checkpointed yet.
func (r *JobRepo) LastCompletedIndex(ctx context.Context, translationID string) (int, error) {
	const q = `SELECT COALESCE(MAX(chunk_index), -1) FROM checkpoint_chunks WHERE translation_id = ?`
	var idx int
	if err := r.db.QueryRowContext(ctx, q, translationID).Scan(&idx); err != nil {
		return 0, fmt.Errorf("sqlite: last completed index: %w", err)
	}
	return idx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var config, progress, tctx string
	var pausedAt, completedAt sql.NullTime
	if err := row.Scan(&j.TranslationID, &j.Status, &j.FileType, &j.FileName,
		&config, &progress, &tctx, &j.CreatedAt, &j.UpdatedAt, &pausedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("sqlite: scan job: %w", err)
	}
	j.Config = json.RawMessage(config)
	j.TranslationContext = json.RawMessage(tctx)
	if pausedAt.Valid {
		t := pausedAt.Time
		j.PausedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	p, err := unmarshalProgress(progress)
	if err != nil {
		return nil, err
	}
	j.Progress = p
	return &j, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (%s): %w", op, err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
