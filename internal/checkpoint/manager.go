package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/state"
)

// Manager layers the checkpoint protocol over the store: transactional
// per-chunk writes, resume bookkeeping, output reconstruction, and the
// per-job upload copy that survives temp-file cleanup.
type Manager struct {
	store     *Store
	repo      *JobRepo
	uploadDir string
	logger    *slog.Logger
}

// NewManager builds a checkpoint manager. uploadDir may be empty when the
// caller never preserves uploads.
func NewManager(store *Store, uploadDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		repo:      NewJobRepo(store),
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Repo exposes the underlying repository for reads that need no
// transaction.
func (m *Manager) Repo() *JobRepo { return m.repo }

// SaveChunk persists one chunk outcome atomically: the chunk row upsert,
// the job progress update, and the optional translation context all commit
// together or not at all. A crash between chunks therefore always leaves
// the database at a chunk boundary.
func (m *Manager) SaveChunk(ctx context.Context, rec *ChunkRecord, progress Progress, translationContext json.RawMessage) error {
	tx, err := m.store.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("sqlite: begin checkpoint tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rb := tx.Rollback(); rb != nil && rb != sql.ErrTxDone {
				m.logger.Warn("checkpoint rollback failed", "error", rb)
			}
		}
	}()

	now := time.Now().UTC()
	var completedAt any
	if rec.CompletedAt != nil {
		completedAt = *rec.CompletedAt
	} else if rec.Status != ChunkPending {
		completedAt = now
	}

	const upsert = `INSERT INTO checkpoint_chunks
		(translation_id, chunk_index, original_text, translated_text, chunk_data, status, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (translation_id, chunk_index) DO UPDATE SET
			original_text = excluded.original_text,
			translated_text = excluded.translated_text,
			chunk_data = excluded.chunk_data,
			status = excluded.status,
			completed_at = excluded.completed_at`
	if _, err = tx.ExecContext(ctx, upsert,
		rec.TranslationID,
		rec.ChunkIndex,
		rec.OriginalText,
		rec.TranslatedText,
		rawOrEmpty(rec.ChunkData),
		rec.Status,
		completedAt,
	); err != nil {
		return fmt.Errorf("sqlite: upsert chunk %d: %w", rec.ChunkIndex, err)
	}

	progressJSON, err := marshalProgress(progress)
	if err != nil {
		return err
	}
	if len(translationContext) > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE translation_jobs SET progress = ?, translation_context = ?, updated_at = ? WHERE translation_id = ?`,
			progressJSON, string(translationContext), now, rec.TranslationID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE translation_jobs SET progress = ?, updated_at = ? WHERE translation_id = ?`,
			progressJSON, now, rec.TranslationID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: update job progress: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit checkpoint: %w", err)
	}
	return nil
}

// ResumeIndex returns the chunk index a resumed job continues from: one
// past the last persisted chunk.
func (m *Manager) ResumeIndex(ctx context.Context, translationID string) (int, error) {
	last, err := m.repo.LastCompletedIndex(ctx, translationID)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// BuildTranslatedOutput reconstructs the job's document from the snapshot
// and the chunk rows persisted so far: completed chunks contribute their
// translation, everything else the fallback rendering with global indices
// and boundary markup intact. The joined text is run through tag
// restoration, so the export is a whole document with every placeholder
// accounted for even mid-job.
func (m *Manager) BuildTranslatedOutput(ctx context.Context, translationID string) (string, error) {
	job, err := m.repo.GetJob(ctx, translationID)
	if err != nil {
		return "", err
	}
	snapshot, err := state.Unmarshal(job.Config)
	if err != nil {
		return "", err
	}
	rows, err := m.repo.GetChunks(ctx, translationID)
	if err != nil {
		return "", err
	}
	byIndex := make(map[int]*ChunkRecord, len(rows))
	for _, row := range rows {
		byIndex[row.ChunkIndex] = row
	}

	mapper := placeholder.NewIndexMapper(snapshot.Format)
	parts := make([]string, 0, len(snapshot.Chunks))
	for i, c := range snapshot.Chunks {
		if row, ok := byIndex[i]; ok && row.Status == ChunkCompleted && row.TranslatedText != "" {
			parts = append(parts, row.TranslatedText)
			continue
		}
		parts = append(parts, mapper.Fallback(c))
	}

	preserver := placeholder.NewTagPreserver(snapshot.Format)
	return preserver.RestoreTags(strings.Join(parts, "\n\n"), snapshot.GlobalTagMap), nil
}

// PreserveUpload copies the source file into the job's upload directory so
// resume keeps working after the original temp upload is cleaned up.
// Returns the preserved path.
func (m *Manager) PreserveUpload(translationID, srcPath string) (string, error) {
	if m.uploadDir == "" {
		return srcPath, nil
	}
	jobDir := filepath.Join(m.uploadDir, translationID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	dst := m.PreservedUploadPath(translationID, srcPath)

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create preserved upload: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copy upload: %w", err)
	}
	return dst, nil
}

// PreservedUploadPath returns where PreserveUpload put the job's copy of
// fileName, or "" when uploads are not preserved.
func (m *Manager) PreservedUploadPath(translationID, fileName string) string {
	if m.uploadDir == "" {
		return ""
	}
	return filepath.Join(m.uploadDir, translationID, filepath.Base(fileName))
}

// DeleteJob removes the job row (chunks cascade) and the preserved upload
// directory. A missing upload directory is not an error.
func (m *Manager) DeleteJob(ctx context.Context, translationID string) error {
	if err := m.repo.DeleteJob(ctx, translationID); err != nil {
		return err
	}
	if m.uploadDir != "" {
		jobDir := filepath.Join(m.uploadDir, translationID)
		if err := os.RemoveAll(jobDir); err != nil {
			m.logger.Warn("failed to remove upload dir", "translation_id", translationID, "error", err)
		}
	}
	return nil
}
