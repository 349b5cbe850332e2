// Package state holds the per-file resumable translation snapshot. The
// snapshot is what the checkpoint layer persists and what resume
// reconstructs; its single structural invariant is that the number of
// restored chunk results always equals the index of the next chunk to
// translate.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkaplan/chapterwise/internal/placeholder"
)

// SchemaVersion is bumped whenever the serialized layout changes shape.
const SchemaVersion = 1

// ErrCorruptState marks a snapshot whose internals disagree with each
// other. A corrupt snapshot must not be resumed.
var ErrCorruptState = errors.New("corrupt translation state")

// Config is the translation configuration frozen into a snapshot when the
// job is created.
type Config struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	TargetSize     int    `json:"target_size"`
	ModelName      string `json:"model_name,omitempty"`
}

// TranslationState is the resumable snapshot of one file's translation.
// Chunks is fixed at chunking time; CurrentChunkIndex advances by exactly
// one after each chunk's outcome (translated or fallback) has been both
// computed and checkpointed.
type TranslationState struct {
	Version       int    `json:"version"`
	TranslationID string `json:"translation_id"`
	FileName      string `json:"file_name"`
	FileType      string `json:"file_type"`

	Config Config `json:"config"`

	// Chunks are the local-indexed translation units in document order.
	Chunks []placeholder.Chunk `json:"chunks"`

	// GlobalTagMap maps every global placeholder token to the original
	// markup or technical content it protects.
	GlobalTagMap map[string]string `json:"global_tag_map"`

	// Format is the placeholder token shape chosen for this document.
	Format placeholder.Format `json:"placeholder_format"`

	// TranslatedChunks holds restored, global-indexed results for the
	// chunks already processed. len(TranslatedChunks) == CurrentChunkIndex
	// at every checkpoint.
	TranslatedChunks  []string `json:"translated_chunks"`
	CurrentChunkIndex int      `json:"current_chunk_index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a fresh snapshot positioned at the first chunk.
func New(translationID, fileName, fileType string, cfg Config, chunks []placeholder.Chunk, tagMap map[string]string, format placeholder.Format) *TranslationState {
	now := time.Now().UTC()
	return &TranslationState{
		Version:       SchemaVersion,
		TranslationID: translationID,
		FileName:      fileName,
		FileType:      fileType,
		Config:        cfg,
		Chunks:        chunks,
		GlobalTagMap:  tagMap,
		Format:        format,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks the snapshot's structural invariants. It is called
// before every resume; a failure means the persisted state was corrupted
// and the job must not continue from it.
func (s *TranslationState) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: schema version %d, expected %d", ErrCorruptState, s.Version, SchemaVersion)
	}
	if s.TranslationID == "" {
		return fmt.Errorf("%w: missing translation id", ErrCorruptState)
	}
	if len(s.TranslatedChunks) != s.CurrentChunkIndex {
		return fmt.Errorf("%w: %d translated chunks but current index %d",
			ErrCorruptState, len(s.TranslatedChunks), s.CurrentChunkIndex)
	}
	if s.CurrentChunkIndex < 0 || s.CurrentChunkIndex > len(s.Chunks) {
		return fmt.Errorf("%w: current index %d out of range for %d chunks",
			ErrCorruptState, s.CurrentChunkIndex, len(s.Chunks))
	}
	if s.Format != placeholder.FormatDouble && s.Format != placeholder.FormatSingle {
		return fmt.Errorf("%w: unknown placeholder format %d", ErrCorruptState, int(s.Format))
	}
	return nil
}

// Advance records the restored result for the current chunk and moves the
// cursor forward. Results must arrive strictly in order.
func (s *TranslationState) Advance(restored string) error {
	if s.Complete() {
		return fmt.Errorf("%w: advance past final chunk %d", ErrCorruptState, s.CurrentChunkIndex)
	}
	s.TranslatedChunks = append(s.TranslatedChunks, restored)
	s.CurrentChunkIndex++
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete reports whether every chunk has a recorded outcome.
func (s *TranslationState) Complete() bool {
	return s.CurrentChunkIndex >= len(s.Chunks)
}

// Remaining is the number of chunks still to translate.
func (s *TranslationState) Remaining() int {
	return len(s.Chunks) - s.CurrentChunkIndex
}

// Marshal serializes the snapshot for persistence.
func (s *TranslationState) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal translation state: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes and validates a persisted snapshot.
func Unmarshal(data []byte) (*TranslationState, error) {
	var s TranslationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal translation state: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
