// Package jobs drives translation jobs through the pipeline: a strictly
// sequential chunk loop per job with a checkpoint after every chunk, and a
// manager running multiple jobs as independent pipelines.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mkaplan/chapterwise/internal/checkpoint"
	"github.com/mkaplan/chapterwise/internal/pipeline"
	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/state"
	"github.com/mkaplan/chapterwise/internal/translator"
)

// Runner executes one job's chunks in order. Chunks are never processed
// in parallel within a job: global index allocation and context chaining
// both depend on document order.
type Runner struct {
	pipeline   *pipeline.Pipeline
	checkpoint *checkpoint.Manager
	logger     *slog.Logger

	// startTime is the job's original start in unix seconds, carried into
	// every persisted progress record. A resumed job keeps the first run's
	// value.
	startTime float64

	interrupted atomic.Bool
}

// NewRunner builds a runner for one job execution.
func NewRunner(p *pipeline.Pipeline, cp *checkpoint.Manager, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pipeline: p, checkpoint: cp, logger: logger}
}

// Interrupt requests a cooperative stop. The flag is polled between
// chunks; the chunk in flight finishes and is checkpointed before the
// loop stops with the job marked interrupted.
func (r *Runner) Interrupt() { r.interrupted.Store(true) }

// Result summarizes a finished (or stopped) job execution.
type Result struct {
	Status          checkpoint.JobStatus
	CompletedChunks int
	FailedChunks    int
	Output          string
}

// Run processes chunks from the state's cursor until completion,
// interruption, or cancellation. Each chunk outcome is persisted before
// the cursor moves on, so a crash at any point resumes at a chunk
// boundary. One failed chunk degrades to fallback text and the loop
// continues; only infrastructure errors (checkpoint writes, cancellation)
// stop it.
func (r *Runner) Run(ctx context.Context, st *state.TranslationState, cm *translator.ContextManager) (*Result, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if r.startTime == 0 {
		r.startTime = unixSeconds(time.Now())
	}
	res := &Result{}
	total := len(st.Chunks)

	for !st.Complete() {
		if r.interrupted.Load() || ctx.Err() != nil {
			return r.stop(ctx, st, res)
		}

		out, err := r.pipeline.ProcessChunk(ctx, st, cm)
		if err != nil {
			if ctx.Err() != nil {
				return r.stop(ctx, st, res)
			}
			return nil, err
		}
		if out.Failed {
			res.FailedChunks++
		} else {
			res.CompletedChunks++
		}

		if err := r.saveChunk(ctx, st, cm, out, res); err != nil {
			return nil, err
		}
		r.logger.Debug("chunk checkpointed",
			"translation_id", st.TranslationID,
			"chunk_index", out.ChunkIndex,
			"failed", out.Failed,
			"progress", fmt.Sprintf("%d/%d", st.CurrentChunkIndex, total))
	}

	output, err := r.pipeline.Assemble(st)
	if err != nil {
		return nil, err
	}
	res.Output = output
	res.Status = checkpoint.StatusCompleted
	if err := r.checkpoint.Repo().UpdateJobStatus(ctx, st.TranslationID, checkpoint.StatusCompleted); err != nil {
		return nil, err
	}
	r.pipeline.Events().Publish(pipeline.Event{
		Type:          pipeline.EventJobCompleted,
		TranslationID: st.TranslationID,
		ChunkIndex:    -1,
		TotalChunks:   total,
	})
	return res, nil
}

// stop checkpoints the current position and marks the job interrupted.
// The context may already be cancelled, so persistence runs on a short
// detached context.
func (r *Runner) stop(ctx context.Context, st *state.TranslationState, res *Result) (*Result, error) {
	stopCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := r.checkpoint.Repo().UpdateJobStatus(stopCtx, st.TranslationID, checkpoint.StatusInterrupted); err != nil {
		return nil, err
	}
	res.Status = checkpoint.StatusInterrupted
	r.pipeline.Events().Publish(pipeline.Event{
		Type:          pipeline.EventJobInterrupted,
		TranslationID: st.TranslationID,
		ChunkIndex:    st.CurrentChunkIndex,
		TotalChunks:   len(st.Chunks),
	})
	r.logger.Info("job interrupted",
		"translation_id", st.TranslationID,
		"resume_index", st.CurrentChunkIndex)
	return res, nil
}

// saveChunk persists one chunk outcome, the refreshed progress counters,
// and the serialized translation context in a single transaction.
func (r *Runner) saveChunk(ctx context.Context, st *state.TranslationState, cm *translator.ContextManager, out pipeline.Outcome, res *Result) error {
	status := checkpoint.ChunkCompleted
	translated := out.Restored
	if out.Failed {
		status = checkpoint.ChunkFailed
		translated = ""
	}

	chunkData, err := json.Marshal(st.Chunks[out.ChunkIndex])
	if err != nil {
		return fmt.Errorf("marshal chunk data: %w", err)
	}
	tctx, err := cm.Marshal()
	if err != nil {
		return err
	}

	// The persisted original is the fallback rendering, not the raw chunk
	// text: global indices and boundary markup restored. Substituting it
	// for a failed chunk keeps the document placeholder-complete.
	mapper := placeholder.NewIndexMapper(st.Format)
	rec := &checkpoint.ChunkRecord{
		TranslationID:  st.TranslationID,
		ChunkIndex:     out.ChunkIndex,
		OriginalText:   mapper.Fallback(st.Chunks[out.ChunkIndex]),
		TranslatedText: translated,
		ChunkData:      chunkData,
		Status:         status,
	}
	progress := checkpoint.Progress{
		CurrentChunkIndex: st.CurrentChunkIndex,
		TotalChunks:       len(st.Chunks),
		CompletedChunks:   res.CompletedChunks,
		FailedChunks:      res.FailedChunks,
		StartTime:         r.startTime,
	}
	return r.checkpoint.SaveChunk(ctx, rec, progress, tctx)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
