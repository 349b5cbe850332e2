package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestJob() *Job {
	return &Job{
		TranslationID: uuid.NewString(),
		Status:        StatusRunning,
		FileType:      "epub",
		FileName:      "book.epub",
		Config:        json.RawMessage(`{"target_language":"French"}`),
		Progress:      Progress{TotalChunks: 3},
	}
}

func TestCreateAndGetJob(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepo(newTestStore(t))

	job := newTestJob()
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := repo.GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != StatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.FileType != "epub" || got.FileName != "book.epub" {
		t.Errorf("file = (%q, %q)", got.FileType, got.FileName)
	}
	if got.Progress.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", got.Progress.TotalChunks)
	}
	var cfg map[string]string
	if err := json.Unmarshal(got.Config, &cfg); err != nil {
		t.Fatalf("config not JSON: %v", err)
	}
	if cfg["target_language"] != "French" {
		t.Errorf("config = %v", cfg)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	repo := NewJobRepo(newTestStore(t))
	if _, err := repo.GetJob(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestListJobs_Filtered(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepo(newTestStore(t))

	running := newTestJob()
	paused := newTestJob()
	paused.FileType = "txt"
	for _, j := range []*Job{running, paused} {
		if err := repo.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	if err := repo.UpdateJobStatus(ctx, paused.TranslationID, StatusPaused); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	all, err := repo.ListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d jobs, want 2", len(all))
	}

	st := StatusPaused
	onlyPaused, err := repo.ListJobs(ctx, &ListFilter{Status: &st})
	if err != nil {
		t.Fatalf("ListJobs(paused): %v", err)
	}
	if len(onlyPaused) != 1 || onlyPaused[0].TranslationID != paused.TranslationID {
		t.Errorf("paused filter returned %v", onlyPaused)
	}

	ft := "txt"
	byType, err := repo.ListJobs(ctx, &ListFilter{FileType: &ft})
	if err != nil {
		t.Fatalf("ListJobs(txt): %v", err)
	}
	if len(byType) != 1 || byType[0].FileType != "txt" {
		t.Errorf("file type filter returned %v", byType)
	}
}

func TestStatusResumable(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{StatusRunning, false},
		{StatusPaused, true},
		{StatusInterrupted, true},
		{StatusError, true},
		{StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.status.Resumable(); got != tt.want {
			t.Errorf("%s.Resumable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSaveChunk_TransactionalProgress(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	m := NewManager(store, "", nil)

	job := newTestJob()
	if err := m.Repo().CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rec := &ChunkRecord{
		TranslationID:  job.TranslationID,
		ChunkIndex:     0,
		OriginalText:   "[[0]]Hello[[1]]",
		TranslatedText: "[[0]]Bonjour[[1]]",
		Status:         ChunkCompleted,
	}
	progress := Progress{CurrentChunkIndex: 1, TotalChunks: 3, CompletedChunks: 1, StartTime: 1700000000.25}
	tctx := json.RawMessage(`{"last_sentences":"Bonjour"}`)
	if err := m.SaveChunk(ctx, rec, progress, tctx); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	got, err := m.Repo().GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Progress.CurrentChunkIndex != 1 || got.Progress.CompletedChunks != 1 {
		t.Errorf("progress = %+v", got.Progress)
	}
	if got.Progress.StartTime != 1700000000.25 {
		t.Errorf("StartTime = %v, want 1700000000.25", got.Progress.StartTime)
	}
	if string(got.TranslationContext) != `{"last_sentences":"Bonjour"}` {
		t.Errorf("translation context = %s", got.TranslationContext)
	}

	chunks, err := m.Repo().GetChunks(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Status != ChunkCompleted || chunks[0].CompletedAt == nil {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestSaveChunk_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), "", nil)

	job := newTestJob()
	if err := m.Repo().CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rec := &ChunkRecord{
		TranslationID: job.TranslationID,
		ChunkIndex:    0,
		OriginalText:  "original",
		Status:        ChunkFailed,
	}
	if err := m.SaveChunk(ctx, rec, Progress{CurrentChunkIndex: 1, TotalChunks: 1, FailedChunks: 1}, nil); err != nil {
		t.Fatalf("SaveChunk(failed): %v", err)
	}

	rec.TranslatedText = "translated"
	rec.Status = ChunkCompleted
	if err := m.SaveChunk(ctx, rec, Progress{CurrentChunkIndex: 1, TotalChunks: 1, CompletedChunks: 1}, nil); err != nil {
		t.Fatalf("SaveChunk(retry): %v", err)
	}

	chunks, err := m.Repo().GetChunks(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunk rows after upsert, want 1", len(chunks))
	}
	if chunks[0].Status != ChunkCompleted || chunks[0].TranslatedText != "translated" {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestResumeIndex(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), "", nil)

	job := newTestJob()
	if err := m.Repo().CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	idx, err := m.ResumeIndex(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("ResumeIndex: %v", err)
	}
	if idx != 0 {
		t.Errorf("fresh job resume index = %d, want 0", idx)
	}

	for i := 0; i < 2; i++ {
		rec := &ChunkRecord{
			TranslationID:  job.TranslationID,
			ChunkIndex:     i,
			OriginalText:   "o",
			TranslatedText: "t",
			Status:         ChunkCompleted,
		}
		if err := m.SaveChunk(ctx, rec, Progress{CurrentChunkIndex: i + 1, TotalChunks: 3}, nil); err != nil {
			t.Fatalf("SaveChunk %d: %v", i, err)
		}
	}

	idx, err = m.ResumeIndex(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("ResumeIndex: %v", err)
	}
	if idx != 2 {
		t.Errorf("resume index = %d, want 2", idx)
	}
}

func TestBuildTranslatedOutput_FailedChunkKeepsDocumentWhole(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), "", nil)

	// Three chunks of one document: the first translated, the second
	// failed, the third never reached. The export must still resolve every
	// global placeholder to its own tag.
	tagMap := map[string]string{
		"[[0]]": "<h1>", "[[1]]": "</h1>",
		"[[2]]": "<p>", "[[3]]": "</p>",
		"[[4]]": "<em>", "[[5]]": "</em>",
	}
	mapper := placeholder.NewIndexMapper(placeholder.FormatDouble)
	chunks := []placeholder.Chunk{
		mapper.ToLocal("[[0]]Title[[1]]", tagMap),
		mapper.ToLocal("[[2]]Body[[3]]", tagMap),
		mapper.ToLocal("[[4]]Tail[[5]]", tagMap),
	}
	cfg := state.Config{SourceLanguage: "English", TargetLanguage: "French", TargetSize: 4000}
	st := state.New(uuid.NewString(), "doc.xhtml", "xhtml", cfg, chunks, tagMap, placeholder.FormatDouble)
	snapshot, err := st.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	job := &Job{
		TranslationID: st.TranslationID,
		Status:        StatusRunning,
		FileType:      "xhtml",
		FileName:      "doc.xhtml",
		Config:        json.RawMessage(snapshot),
		Progress:      Progress{TotalChunks: 3},
	}
	if err := m.Repo().CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	translated, err := mapper.ToGlobal("[[0]]Titre[[1]]", chunks[0])
	if err != nil {
		t.Fatalf("ToGlobal: %v", err)
	}
	records := []*ChunkRecord{
		{
			TranslationID:  st.TranslationID,
			ChunkIndex:     0,
			OriginalText:   mapper.Fallback(chunks[0]),
			TranslatedText: translated,
			Status:         ChunkCompleted,
		},
		{
			TranslationID: st.TranslationID,
			ChunkIndex:    1,
			OriginalText:  mapper.Fallback(chunks[1]),
			Status:        ChunkFailed,
		},
	}
	for i, rec := range records {
		if err := m.SaveChunk(ctx, rec, Progress{CurrentChunkIndex: i + 1, TotalChunks: 3}, nil); err != nil {
			t.Fatalf("SaveChunk %d: %v", i, err)
		}
	}

	out, err := m.BuildTranslatedOutput(ctx, st.TranslationID)
	if err != nil {
		t.Fatalf("BuildTranslatedOutput: %v", err)
	}
	for _, want := range []string{"<h1>Titre</h1>", "<p>Body</p>", "<em>Tail</em>"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%q", want, out)
		}
	}
	if idx := placeholder.FormatDouble.Indices(out); len(idx) != 0 {
		t.Errorf("unresolved placeholders %v in export", idx)
	}
}

func TestUpdateJobStatus_LifecycleTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepo(newTestStore(t))

	job := newTestJob()
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	got, err := repo.GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.PausedAt != nil || got.CompletedAt != nil {
		t.Errorf("fresh job has lifecycle timestamps: %+v", got)
	}

	if err := repo.UpdateJobStatus(ctx, job.TranslationID, StatusInterrupted); err != nil {
		t.Fatalf("UpdateJobStatus(interrupted): %v", err)
	}
	got, err = repo.GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.PausedAt == nil {
		t.Error("paused_at not set on interruption")
	}
	if got.CompletedAt != nil {
		t.Error("completed_at set by interruption")
	}

	if err := repo.UpdateJobStatus(ctx, job.TranslationID, StatusCompleted); err != nil {
		t.Fatalf("UpdateJobStatus(completed): %v", err)
	}
	got, err = repo.GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on completion")
	}
}

func TestDeleteJob_CascadesChunks(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newTestStore(t), "", nil)

	job := newTestJob()
	if err := m.Repo().CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	rec := &ChunkRecord{
		TranslationID: job.TranslationID,
		ChunkIndex:    0,
		OriginalText:  "o",
		Status:        ChunkCompleted,
	}
	if err := m.SaveChunk(ctx, rec, Progress{CurrentChunkIndex: 1, TotalChunks: 1}, nil); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	if err := m.DeleteJob(ctx, job.TranslationID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := m.Repo().GetJob(ctx, job.TranslationID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("job still present: %v", err)
	}
	chunks, err := m.Repo().GetChunks(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetChunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks survived cascade delete: %v", chunks)
	}
}

func TestPreserveUpload(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(newTestStore(t), dir, nil)

	src := filepath.Join(t.TempDir(), "upload.epub")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	dst, err := m.PreserveUpload("job-9", src)
	if err != nil {
		t.Fatalf("PreserveUpload: %v", err)
	}
	if want := m.PreservedUploadPath("job-9", src); dst != want {
		t.Errorf("preserved path = %q, want %q", dst, want)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read preserved: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("preserved content = %q", data)
	}

	// Simulate temp cleanup; the preserved copy must survive.
	if err := os.Remove(src); err != nil {
		t.Fatalf("remove source: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("preserved upload gone: %v", err)
	}
}

func TestProgressPercent(t *testing.T) {
	if got := (Progress{}).Percent(); got != 0 {
		t.Errorf("empty progress percent = %v", got)
	}
	p := Progress{CurrentChunkIndex: 3, TotalChunks: 4}
	if got := p.Percent(); got != 75 {
		t.Errorf("percent = %v, want 75", got)
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapterwise.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	repo := NewJobRepo(s)
	job := newTestJob()
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: migrations are idempotent and data persists.
	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := NewJobRepo(s2).GetJob(ctx, job.TranslationID)
	if err != nil {
		t.Fatalf("GetJob after reopen: %v", err)
	}
	if got.TranslationID != job.TranslationID {
		t.Errorf("TranslationID = %q", got.TranslationID)
	}
}
