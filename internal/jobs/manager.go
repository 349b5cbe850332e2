package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
	"github.com/mkaplan/chapterwise/internal/document"
	"github.com/mkaplan/chapterwise/internal/pipeline"
	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/state"
	"github.com/mkaplan/chapterwise/internal/translator"
)

// ErrJobActive is returned when an operation requires a job that is not
// currently running.
var ErrJobActive = errors.New("job is currently running")

// JobStatus is a point-in-time copy of a job's in-memory state. Callers
// always receive a copy, never a reference into live state.
type JobStatus struct {
	TranslationID string
	FileName      string
	Status        checkpoint.JobStatus
	Progress      checkpoint.Progress
	StartedAt     time.Time
	FinishedAt    time.Time
	Error         string
}

type activeJob struct {
	runner *Runner
	status JobStatus
}

// Manager runs translation jobs concurrently, each as an independent
// strictly-sequential chunk pipeline over a shared checkpoint store.
type Manager struct {
	pipeline   *pipeline.Pipeline
	checkpoint *checkpoint.Manager
	logger     *slog.Logger

	mu     sync.Mutex
	active map[string]*activeJob
}

// NewManager creates a job manager.
func NewManager(p *pipeline.Pipeline, cp *checkpoint.Manager, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pipeline:   p,
		checkpoint: cp,
		logger:     logger,
		active:     make(map[string]*activeJob),
	}
}

// StartJob prepares a new translation job and runs its chunk loop on the
// calling goroutine. The snapshot is persisted before the first chunk so
// a crash mid-job resumes with the full chunk list.
func (m *Manager) StartJob(ctx context.Context, fileName, fileType string, cfg state.Config, chapters []document.Chapter) (*Result, error) {
	translationID := uuid.NewString()

	st, err := m.pipeline.Prepare(translationID, fileName, fileType, cfg, chapters)
	if err != nil {
		return nil, err
	}
	snapshot, err := st.Marshal()
	if err != nil {
		return nil, err
	}
	startTime := unixSeconds(time.Now())
	job := &checkpoint.Job{
		TranslationID: translationID,
		Status:        checkpoint.StatusRunning,
		FileType:      fileType,
		FileName:      fileName,
		Config:        json.RawMessage(snapshot),
		Progress:      checkpoint.Progress{TotalChunks: len(st.Chunks), StartTime: startTime},
	}
	if err := m.checkpoint.Repo().CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if _, err := m.checkpoint.PreserveUpload(translationID, fileName); err != nil {
		m.logger.Warn("failed to preserve upload", "translation_id", translationID, "error", err)
	}
	m.pipeline.Events().Publish(pipeline.Event{
		Type:          pipeline.EventJobStarted,
		TranslationID: translationID,
		ChunkIndex:    -1,
		TotalChunks:   len(st.Chunks),
	})

	return m.run(ctx, st, translator.NewContextManager(), fileName, startTime)
}

// ResumeJob reconstructs a stopped job from its checkpoint and continues
// from the chunk after the last persisted one.
func (m *Manager) ResumeJob(ctx context.Context, translationID string) (*Result, error) {
	job, err := m.checkpoint.Repo().GetJob(ctx, translationID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Resumable() {
		return nil, fmt.Errorf("job %s in status %q cannot be resumed", translationID, job.Status)
	}

	st, cm, err := m.reconstruct(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := m.checkpoint.Repo().UpdateJobStatus(ctx, translationID, checkpoint.StatusRunning); err != nil {
		return nil, err
	}
	m.logger.Info("resuming job",
		"translation_id", translationID,
		"resume_index", st.CurrentChunkIndex,
		"total_chunks", len(st.Chunks))

	return m.run(ctx, st, cm, job.FileName, job.Progress.StartTime)
}

// reconstruct rebuilds the in-memory snapshot from the persisted one plus
// the chunk rows written since. Failed chunks re-derive their fallback
// text deterministically from the stored chunk data.
func (m *Manager) reconstruct(ctx context.Context, job *checkpoint.Job) (*state.TranslationState, *translator.ContextManager, error) {
	st, err := state.Unmarshal(job.Config)
	if err != nil {
		return nil, nil, err
	}
	resumeIndex, err := m.checkpoint.ResumeIndex(ctx, job.TranslationID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := m.checkpoint.Repo().GetChunks(ctx, job.TranslationID)
	if err != nil {
		return nil, nil, err
	}

	mapper := placeholder.NewIndexMapper(st.Format)
	restored := make([]string, 0, resumeIndex)
	for _, row := range rows {
		if row.ChunkIndex >= resumeIndex {
			break
		}
		if row.Status == checkpoint.ChunkCompleted && row.TranslatedText != "" {
			restored = append(restored, row.TranslatedText)
			continue
		}
		if row.ChunkIndex >= len(st.Chunks) {
			return nil, nil, fmt.Errorf("%w: chunk row %d beyond snapshot", state.ErrCorruptState, row.ChunkIndex)
		}
		restored = append(restored, mapper.Fallback(st.Chunks[row.ChunkIndex]))
	}
	if len(restored) != resumeIndex {
		return nil, nil, fmt.Errorf("%w: %d chunk rows below resume index %d",
			state.ErrCorruptState, len(restored), resumeIndex)
	}
	st.TranslatedChunks = restored
	st.CurrentChunkIndex = resumeIndex
	if err := st.Validate(); err != nil {
		return nil, nil, err
	}

	cm, err := translator.RestoreContext(job.TranslationContext)
	if err != nil {
		return nil, nil, err
	}
	return st, cm, nil
}

// run executes the chunk loop, tracking the job in the active set for
// interruption and status queries.
func (m *Manager) run(ctx context.Context, st *state.TranslationState, cm *translator.ContextManager, fileName string, startTime float64) (*Result, error) {
	runner := NewRunner(m.pipeline, m.checkpoint, m.logger)
	runner.startTime = startTime
	aj := &activeJob{
		runner: runner,
		status: JobStatus{
			TranslationID: st.TranslationID,
			FileName:      fileName,
			Status:        checkpoint.StatusRunning,
			Progress: checkpoint.Progress{
				CurrentChunkIndex: st.CurrentChunkIndex,
				TotalChunks:       len(st.Chunks),
				StartTime:         startTime,
			},
			StartedAt: time.Now().UTC(),
		},
	}
	m.mu.Lock()
	m.active[st.TranslationID] = aj
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.active, st.TranslationID)
		m.mu.Unlock()
	}()

	unsubscribe := m.pipeline.Events().Subscribe(m.trackProgress(st.TranslationID))
	defer unsubscribe()

	res, err := runner.Run(ctx, st, cm)
	if err != nil {
		m.markError(ctx, st.TranslationID, err)
		return nil, err
	}
	return res, nil
}

// trackProgress mirrors chunk events into the job's in-memory status.
func (m *Manager) trackProgress(translationID string) pipeline.Listener {
	return func(ev pipeline.Event) {
		if ev.TranslationID != translationID {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		aj, ok := m.active[translationID]
		if !ok {
			return
		}
		switch ev.Type {
		case pipeline.EventChunkCompleted:
			aj.status.Progress.CurrentChunkIndex = ev.ChunkIndex + 1
			aj.status.Progress.CompletedChunks++
		case pipeline.EventChunkFailed:
			aj.status.Progress.CurrentChunkIndex = ev.ChunkIndex + 1
			aj.status.Progress.FailedChunks++
		}
	}
}

func (m *Manager) markError(ctx context.Context, translationID string, cause error) {
	if ctx.Err() != nil {
		return
	}
	if err := m.checkpoint.Repo().UpdateJobStatus(ctx, translationID, checkpoint.StatusError); err != nil {
		m.logger.Warn("failed to mark job errored", "translation_id", translationID, "error", err)
	}
	m.pipeline.Events().Publish(pipeline.Event{
		Type:          pipeline.EventJobFailed,
		TranslationID: translationID,
		ChunkIndex:    -1,
		Error:         cause.Error(),
	})
}

// Interrupt requests a cooperative stop of a running job. Returns false
// when the job is not active.
func (m *Manager) Interrupt(translationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	aj, ok := m.active[translationID]
	if !ok {
		return false
	}
	aj.runner.Interrupt()
	return true
}

// Status returns a deep copy of a running job's status, or the persisted
// status for inactive jobs.
func (m *Manager) Status(ctx context.Context, translationID string) (JobStatus, error) {
	m.mu.Lock()
	if aj, ok := m.active[translationID]; ok {
		st := aj.status
		m.mu.Unlock()
		return st, nil
	}
	m.mu.Unlock()

	job, err := m.checkpoint.Repo().GetJob(ctx, translationID)
	if err != nil {
		return JobStatus{}, err
	}
	return JobStatus{
		TranslationID: job.TranslationID,
		FileName:      job.FileName,
		Status:        job.Status,
		Progress:      job.Progress,
		StartedAt:     job.CreatedAt,
		FinishedAt:    job.UpdatedAt,
	}, nil
}

// Delete removes a stopped job and its preserved upload. Active jobs must
// be interrupted first.
func (m *Manager) Delete(ctx context.Context, translationID string) error {
	m.mu.Lock()
	_, running := m.active[translationID]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("%w: %s", ErrJobActive, translationID)
	}
	return m.checkpoint.DeleteJob(ctx, translationID)
}
