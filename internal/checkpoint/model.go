package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a translation job.
type JobStatus string

const (
	StatusRunning     JobStatus = "running"
	StatusPaused      JobStatus = "paused"
	StatusInterrupted JobStatus = "interrupted"
	StatusError       JobStatus = "error"
	StatusCompleted   JobStatus = "completed"
)

// Resumable reports whether a job in this status may transition back to
// running.
func (s JobStatus) Resumable() bool {
	switch s {
	case StatusPaused, StatusInterrupted, StatusError:
		return true
	default:
		return false
	}
}

// ChunkStatus is the persisted outcome of one chunk.
type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkCompleted ChunkStatus = "completed"
	ChunkFailed    ChunkStatus = "failed"
)

// Progress is the job-level counters stored as JSON in the progress
// column and updated inside every chunk checkpoint transaction. StartTime
// is the job's original start in unix seconds and survives resume.
type Progress struct {
	CurrentChunkIndex int     `json:"current_chunk_index"`
	TotalChunks       int     `json:"total_chunks"`
	CompletedChunks   int     `json:"completed_chunks"`
	FailedChunks      int     `json:"failed_chunks"`
	StartTime         float64 `json:"start_time"`
}

// Percent returns completion as 0-100.
func (p Progress) Percent() float64 {
	if p.TotalChunks == 0 {
		return 0
	}
	return 100 * float64(p.CurrentChunkIndex) / float64(p.TotalChunks)
}

// Job is one row of translation_jobs. PausedAt and CompletedAt record the
// most recent matching lifecycle transition and stay nil until it happens.
type Job struct {
	TranslationID      string
	Status             JobStatus
	FileType           string
	FileName           string
	Config             json.RawMessage
	Progress           Progress
	TranslationContext json.RawMessage
	CreatedAt          time.Time
	UpdatedAt          time.Time
	PausedAt           *time.Time
	CompletedAt        *time.Time
}

// ChunkRecord is one row of checkpoint_chunks. Both texts carry global
// placeholder indices with boundary markup attached: TranslatedText holds
// the restored result and is empty for a failed chunk, OriginalText holds
// the fallback rendering a reader substitutes for it.
type ChunkRecord struct {
	TranslationID  string
	ChunkIndex     int
	OriginalText   string
	TranslatedText string
	ChunkData      json.RawMessage
	Status         ChunkStatus
	CompletedAt    *time.Time
}

func marshalProgress(p Progress) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal progress: %w", err)
	}
	return string(data), nil
}

func unmarshalProgress(raw string) (Progress, error) {
	var p Progress
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return p, nil
}
