package chunker

import "unicode/utf8"

// BoundaryType records how a chunk's end position was chosen.
type BoundaryType string

const (
	BoundarySentenceEnd  BoundaryType = "sentence_end"
	BoundaryParagraphEnd BoundaryType = "paragraph_end"
	BoundarySectionEnd   BoundaryType = "section_end"
	BoundaryForcedSize   BoundaryType = "forced_size"
	BoundaryChapterEnd   BoundaryType = "chapter_end"
)

// Boundary describes a chosen break point. If FallbackUsed is set the
// confidence is always below 1.0.
type Boundary struct {
	Position     int          `json:"position"`
	Type         BoundaryType `json:"type"`
	Confidence   float64      `json:"confidence"`
	Terminator   string       `json:"terminator,omitempty"`
	FallbackUsed bool         `json:"fallback_used"`
}

// ChunkStatus tracks a chunk through the pipeline.
type ChunkStatus string

const (
	StatusCreated    ChunkStatus = "created"
	StatusValidated  ChunkStatus = "validated"
	StatusTranslated ChunkStatus = "translated"
	StatusAssembled  ChunkStatus = "assembled"
	StatusFailed     ChunkStatus = "failed"
)

// contextWindow is the number of runes of neighboring text attached to a
// chunk as translation context.
const contextWindow = 200

// TextChunk is one bounded span of a chapter sent to the translator as a
// unit. CharacterCount always equals the rune count of Content.
type TextChunk struct {
	Content        string       `json:"content"`
	CharacterCount int          `json:"character_count"`
	ChunkIndex     int          `json:"chunk_index"`
	ChapterID      string       `json:"chapter_id"`
	ChapterIndex   int          `json:"chapter_index"`
	BoundaryType   BoundaryType `json:"boundary_type"`
	HasHeader      bool         `json:"has_header"`
	ContextBefore  string       `json:"context_before,omitempty"`
	ContextAfter   string       `json:"context_after,omitempty"`
	Status         ChunkStatus  `json:"status"`
}

// newTextChunk builds a chunk with its derived character count.
func newTextChunk(content, chapterID string, chapterIndex, chunkIndex int, bt BoundaryType, hasHeader bool) TextChunk {
	return TextChunk{
		Content:        content,
		CharacterCount: utf8.RuneCountInString(content),
		ChunkIndex:     chunkIndex,
		ChapterID:      chapterID,
		ChapterIndex:   chapterIndex,
		BoundaryType:   bt,
		HasHeader:      hasHeader,
		Status:         StatusCreated,
	}
}

// Chapter owns the chunks produced from one source chapter or file.
type Chapter struct {
	ChapterID         string      `json:"chapter_id"`
	ChapterIndex      int         `json:"chapter_index"`
	OriginalContent   string      `json:"original_content"`
	TranslatedContent string      `json:"translated_content,omitempty"`
	Chunks            []TextChunk `json:"chunks"`
}

// CharacterCount is the rune count of the original content.
func (c *Chapter) CharacterCount() int { return utf8.RuneCountInString(c.OriginalContent) }

// ChunkCount is the number of chunks the chapter was split into.
func (c *Chapter) ChunkCount() int { return len(c.Chunks) }

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// headRunes returns the first n runes of s.
func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
