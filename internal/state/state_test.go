package state

import (
	"errors"
	"testing"

	"github.com/mkaplan/chapterwise/internal/placeholder"
)

func newTestState() *TranslationState {
	m := placeholder.NewIndexMapper(placeholder.FormatDouble)
	chunks := []placeholder.Chunk{
		m.ToLocal("[[0]]One[[1]]", nil),
		m.ToLocal("[[2]]Two[[3]]", nil),
		m.ToLocal("[[4]]Three[[5]]", nil),
	}
	tagMap := map[string]string{
		"[[0]]": "<p>", "[[1]]": "</p>",
		"[[2]]": "<p>", "[[3]]": "</p>",
		"[[4]]": "<p>", "[[5]]": "</p>",
	}
	cfg := Config{SourceLanguage: "English", TargetLanguage: "French", TargetSize: 4000}
	return New("job-1", "book.xhtml", "epub", cfg, chunks, tagMap, placeholder.FormatDouble)
}

func TestNewStateValidates(t *testing.T) {
	s := newTestState()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.CurrentChunkIndex != 0 || len(s.TranslatedChunks) != 0 {
		t.Errorf("fresh state at index %d with %d results", s.CurrentChunkIndex, len(s.TranslatedChunks))
	}
	if s.Complete() {
		t.Error("fresh state reports complete")
	}
	if s.Remaining() != 3 {
		t.Errorf("Remaining = %d, want 3", s.Remaining())
	}
}

func TestAdvanceKeepsInvariant(t *testing.T) {
	s := newTestState()

	for i := 0; i < 3; i++ {
		if err := s.Advance("result"); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
		if len(s.TranslatedChunks) != s.CurrentChunkIndex {
			t.Fatalf("after advance %d: %d results, index %d",
				i, len(s.TranslatedChunks), s.CurrentChunkIndex)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("Validate after advance %d: %v", i, err)
		}
	}
	if !s.Complete() {
		t.Error("state not complete after final advance")
	}
	if err := s.Advance("extra"); !errors.Is(err, ErrCorruptState) {
		t.Errorf("advance past end: err = %v, want ErrCorruptState", err)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TranslationState)
	}{
		{"index ahead of results", func(s *TranslationState) { s.CurrentChunkIndex = 2 }},
		{"results ahead of index", func(s *TranslationState) { s.TranslatedChunks = []string{"x"} }},
		{"negative index", func(s *TranslationState) { s.CurrentChunkIndex = -1 }},
		{"index beyond chunks", func(s *TranslationState) {
			s.CurrentChunkIndex = 4
			s.TranslatedChunks = []string{"a", "b", "c", "d"}
		}},
		{"missing id", func(s *TranslationState) { s.TranslationID = "" }},
		{"wrong version", func(s *TranslationState) { s.Version = 99 }},
		{"bad format", func(s *TranslationState) { s.Format = placeholder.Format(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState()
			tt.mutate(s)
			if err := s.Validate(); !errors.Is(err, ErrCorruptState) {
				t.Errorf("err = %v, want ErrCorruptState", err)
			}
		})
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	s := newTestState()
	if err := s.Advance("[[0]]Un[[1]]"); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.TranslationID != s.TranslationID {
		t.Errorf("TranslationID = %q, want %q", got.TranslationID, s.TranslationID)
	}
	if got.CurrentChunkIndex != 1 || len(got.TranslatedChunks) != 1 {
		t.Errorf("cursor = (%d, %d results), want (1, 1)", got.CurrentChunkIndex, len(got.TranslatedChunks))
	}
	if got.TranslatedChunks[0] != "[[0]]Un[[1]]" {
		t.Errorf("TranslatedChunks[0] = %q", got.TranslatedChunks[0])
	}
	if len(got.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got.Chunks))
	}
	if got.Chunks[1].Text != s.Chunks[1].Text {
		t.Errorf("chunk 1 text = %q, want %q", got.Chunks[1].Text, s.Chunks[1].Text)
	}
	if got.GlobalTagMap["[[4]]"] != "<p>" {
		t.Errorf("GlobalTagMap[[[4]]] = %q", got.GlobalTagMap["[[4]]"])
	}
	if got.Config.TargetLanguage != "French" {
		t.Errorf("Config.TargetLanguage = %q", got.Config.TargetLanguage)
	}
}

func TestUnmarshalRejectsCorruptPayload(t *testing.T) {
	s := newTestState()
	s.CurrentChunkIndex = 2 // results still empty
	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrCorruptState) {
		t.Errorf("err = %v, want ErrCorruptState", err)
	}
	if _, err := Unmarshal([]byte("{not json")); err == nil {
		t.Error("malformed JSON accepted")
	}
}
