package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mkaplan/chapterwise/internal/boundary"
)

func testConfig(t *testing.T, target int) Config {
	t.Helper()
	cfg, err := NewConfig(target, 0.7, 1.3, 1.5, boundary.DefaultTerminators)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

// proseParagraph builds a paragraph of n short sentences.
func proseParagraph(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d says something plain. ", i)
	}
	return strings.TrimSpace(b.String())
}

func TestNewConfig_Validation(t *testing.T) {
	terms := boundary.DefaultTerminators
	tests := []struct {
		name   string
		target int
		minTol float64
		maxTol float64
		warn   float64
		terms  []string
	}{
		{"zero target", 0, 0.7, 1.3, 1.5, terms},
		{"negative target", -1, 0.7, 1.3, 1.5, terms},
		{"min tolerance zero", 4000, 0, 1.3, 1.5, terms},
		{"min tolerance too high", 4000, 1.0, 1.3, 1.5, terms},
		{"max tolerance too low", 4000, 0.7, 1.0, 1.5, terms},
		{"max tolerance too high", 4000, 0.7, 3.0, 3.0, terms},
		{"warning below max", 4000, 0.7, 1.3, 1.2, terms},
		{"no terminators", 4000, 0.7, 1.3, 1.5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.target, tt.minTol, tt.maxTol, tt.warn, tt.terms)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := NewConfig(4000, 0.7, 1.3, 1.5, terms); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestChunkText_SmallTextSingleChunk(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 1000), nil)

	text := "A short chapter. Nothing to split here."
	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("Content = %q, want original text", chunks[0].Content)
	}
	if chunks[0].BoundaryType != BoundaryChapterEnd {
		t.Errorf("BoundaryType = %q, want %q", chunks[0].BoundaryType, BoundaryChapterEnd)
	}
	if chunks[0].CharacterCount != utf8.RuneCountInString(text) {
		t.Errorf("CharacterCount = %d, want %d", chunks[0].CharacterCount, utf8.RuneCountInString(text))
	}
}

func TestChunkText_Empty(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 1000), nil)
	if got := c.ChunkText("", "ch1", 0); got != nil {
		t.Errorf("ChunkText(\"\") = %v, want nil", got)
	}
	if got := c.ChunkText("   \n\n  \n", "ch1", 0); got != nil {
		t.Errorf("whitespace-only input produced %d chunks, want none", len(got))
	}
}

func TestChunkText_NoContentLoss(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 300), nil)

	paras := []string{
		proseParagraph(3),
		proseParagraph(8),
		proseParagraph(5),
		proseParagraph(12),
		proseParagraph(2),
	}
	text := strings.Join(paras, "\n\n")

	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	// Every sentence of the source must appear in exactly one chunk.
	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Content)
		joined.WriteString(" ")
	}
	all := joined.String()
	for i, p := range paras {
		for _, sentence := range strings.SplitAfter(p, ". ") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if !strings.Contains(all, sentence) {
				t.Errorf("paragraph %d sentence %q missing from output", i, sentence)
			}
		}
	}
}

func TestChunkText_IndicesContiguous(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 200), nil)
	text := strings.Join([]string{proseParagraph(6), proseParagraph(6), proseParagraph(6)}, "\n\n")

	chunks := c.ChunkText(text, "ch2", 3)
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d", i, ch.ChunkIndex)
		}
		if ch.ChapterID != "ch2" || ch.ChapterIndex != 3 {
			t.Errorf("chunk %d chapter = (%q, %d), want (ch2, 3)", i, ch.ChapterID, ch.ChapterIndex)
		}
		if ch.Status != StatusCreated {
			t.Errorf("chunk %d Status = %q, want %q", i, ch.Status, StatusCreated)
		}
	}
	if last := chunks[len(chunks)-1]; last.BoundaryType != BoundaryChapterEnd {
		t.Errorf("last BoundaryType = %q, want %q", last.BoundaryType, BoundaryChapterEnd)
	}
}

func TestChunkText_SizeConformance(t *testing.T) {
	cfg := testConfig(t, 400)
	c := NewCharacterChunker(cfg, nil)

	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, proseParagraph(4+i%5))
	}
	chunks := c.ChunkText(strings.Join(paras, "\n\n"), "ch1", 0)

	stats, err := CalculateStatistics(chunks, cfg)
	if err != nil {
		t.Fatalf("CalculateStatistics: %v", err)
	}
	if stats.WithinTolerancePct < 80 {
		t.Errorf("WithinTolerancePct = %.1f, want >= 80 (sizes min=%d max=%d avg=%.0f)",
			stats.WithinTolerancePct, stats.MinSize, stats.MaxSize, stats.AvgSize)
	}
}

func TestChunkText_HeaderMergedWithFollowingText(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 500), nil)

	text := "# Chapter One\n\n" + proseParagraph(4)
	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !chunks[0].HasHeader {
		t.Error("HasHeader = false, want true")
	}
	if !strings.HasPrefix(chunks[0].Content, "# Chapter One") {
		t.Errorf("header not merged into chunk: %q", headRunes(chunks[0].Content, 40))
	}
}

func TestChunkText_TrailingHeaderNotLost(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 500), nil)

	text := proseParagraph(3) + "\n\n# Appendix"
	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "# Appendix") {
		t.Error("trailing header dropped from output")
	}
	if !chunks[0].HasHeader {
		t.Error("HasHeader = false, want true")
	}
}

func TestChunkText_LongParagraphSplitAtSentences(t *testing.T) {
	cfg := testConfig(t, 200)
	c := NewCharacterChunker(cfg, nil)

	// One paragraph far beyond max size, full of sentence boundaries.
	text := proseParagraph(40)
	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if ch.BoundaryType == BoundaryForcedSize {
			t.Errorf("chunk %d force-split despite available sentence boundaries", i)
		}
		if !strings.HasSuffix(strings.TrimSpace(ch.Content), ".") {
			t.Errorf("chunk %d does not end at a sentence: %q", i, tailRunes(ch.Content, 30))
		}
	}
}

func TestChunkText_ForcedSplitWithoutBoundaries(t *testing.T) {
	cfg := testConfig(t, 100)
	c := NewCharacterChunker(cfg, nil)

	// No terminators anywhere: the chunker must fall back to forced cuts
	// rather than emit a chunk 5x over target.
	text := strings.Repeat("word ", 120)
	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	forced := 0
	for _, ch := range chunks {
		if ch.BoundaryType == BoundaryForcedSize {
			forced++
		}
	}
	if forced == 0 {
		t.Error("no forced-size boundaries recorded")
	}
	for i, ch := range chunks {
		if ch.CharacterCount > cfg.MaxSize() {
			t.Errorf("chunk %d size %d exceeds max %d", i, ch.CharacterCount, cfg.MaxSize())
		}
	}
}

func TestChunkText_ContextWindows(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 200), nil)
	text := strings.Join([]string{proseParagraph(6), proseParagraph(6), proseParagraph(6)}, "\n\n")

	chunks := c.ChunkText(text, "ch1", 0)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want >= 3", len(chunks))
	}
	if chunks[0].ContextBefore != "" {
		t.Error("first chunk has ContextBefore")
	}
	if chunks[len(chunks)-1].ContextAfter != "" {
		t.Error("last chunk has ContextAfter")
	}
	mid := chunks[1]
	if mid.ContextBefore == "" || mid.ContextAfter == "" {
		t.Error("middle chunk missing context windows")
	}
	if !strings.HasSuffix(chunks[0].Content, mid.ContextBefore) {
		t.Error("ContextBefore is not the tail of the previous chunk")
	}
	if !strings.HasPrefix(chunks[2].Content, mid.ContextAfter) {
		t.Error("ContextAfter is not the head of the next chunk")
	}
	if n := utf8.RuneCountInString(mid.ContextBefore); n > contextWindow {
		t.Errorf("ContextBefore length %d exceeds window %d", n, contextWindow)
	}
}

func TestChunkChapter(t *testing.T) {
	c := NewCharacterChunker(testConfig(t, 200), nil)
	ch := &Chapter{
		ChapterID:       "intro",
		ChapterIndex:    0,
		OriginalContent: strings.Join([]string{proseParagraph(6), proseParagraph(6)}, "\n\n"),
	}
	got := c.ChunkChapter(ch)
	if got != ch {
		t.Error("ChunkChapter did not return its receiver argument")
	}
	if ch.ChunkCount() == 0 {
		t.Fatal("no chunks produced")
	}
	if ch.CharacterCount() != utf8.RuneCountInString(ch.OriginalContent) {
		t.Error("CharacterCount does not match original content")
	}
}
