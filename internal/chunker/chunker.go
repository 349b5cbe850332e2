// Package chunker splits placeholder-protected text into size-bounded
// chunks along safe sentence and paragraph boundaries.
package chunker

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mkaplan/chapterwise/internal/boundary"
)

// CharacterChunker cuts chapter text into chunks near the configured target
// size without breaking sentences. Oversized paragraphs are split at the
// nearest sentence boundary, or force-split when none exists.
type CharacterChunker struct {
	cfg      Config
	detector *boundary.Detector
	logger   *slog.Logger
}

// NewCharacterChunker builds a chunker for the given configuration.
func NewCharacterChunker(cfg Config, logger *slog.Logger) *CharacterChunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CharacterChunker{
		cfg:      cfg,
		detector: boundary.NewDetector(),
		logger:   logger,
	}
}

var paragraphSplitRe = regexp.MustCompile(`\n[ \t]*\n+`)

// ChunkText splits text into chunks for one chapter. Chunk indices are
// 0-based and contiguous; concatenating chunk contents (with paragraph
// joins) loses no content. Header lines are merged into the chunk that
// follows them.
func (c *CharacterChunker) ChunkText(text, chapterID string, chapterIndex int) []TextChunk {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	maxSize := c.cfg.MaxSize()
	minSize := c.cfg.MinSize()

	type pending struct {
		content      string
		boundaryType BoundaryType
		hasHeader    bool
	}
	var out []pending

	var buf []string
	bufLen := 0
	bufHasHeader := false
	var headerCarry []string

	flush := func(bt BoundaryType) {
		if bufLen == 0 {
			return
		}
		out = append(out, pending{
			content:      strings.Join(buf, "\n\n"),
			boundaryType: bt,
			hasHeader:    bufHasHeader,
		})
		buf = nil
		bufLen = 0
		bufHasHeader = false
	}

	for _, para := range paragraphs {
		// Headers never stand alone; they ride with the following text.
		if isHeaderParagraph(para) {
			headerCarry = append(headerCarry, para)
			continue
		}
		paraHasHeader := false
		if len(headerCarry) > 0 {
			para = strings.Join(headerCarry, "\n\n") + "\n\n" + para
			headerCarry = nil
			paraHasHeader = true
		}

		paraLen := utf8.RuneCountInString(para)

		if paraLen > maxSize {
			// A paragraph that alone exceeds the limit is split on its own.
			flush(BoundaryParagraphEnd)
			pieces, remainder := c.splitLongParagraph(para)
			for _, p := range pieces {
				out = append(out, pending{
					content:      p.content,
					boundaryType: p.boundaryType,
					hasHeader:    paraHasHeader,
				})
				paraHasHeader = false
			}
			if remainder != "" {
				buf = append(buf, remainder)
				bufLen = utf8.RuneCountInString(remainder)
				bufHasHeader = paraHasHeader
			}
			continue
		}

		// +2 for the paragraph join.
		if bufLen > 0 && bufLen+2+paraLen > maxSize {
			if bufLen >= minSize {
				flush(BoundaryParagraphEnd)
			}
			// Below min: keep accumulating. An over-size chunk beats an
			// under-size one.
		}
		buf = append(buf, para)
		if bufLen > 0 {
			bufLen += 2
		}
		bufLen += paraLen
		bufHasHeader = bufHasHeader || paraHasHeader
	}

	// Trailing header with no following paragraph still must not be lost.
	if len(headerCarry) > 0 {
		carry := strings.Join(headerCarry, "\n\n")
		buf = append(buf, carry)
		bufLen += utf8.RuneCountInString(carry)
		bufHasHeader = true
	}
	flush(BoundaryParagraphEnd)

	if len(out) == 0 {
		return nil
	}
	out[len(out)-1].boundaryType = BoundaryChapterEnd

	chunks := make([]TextChunk, 0, len(out))
	warnSize := c.cfg.WarningSize()
	for i, p := range out {
		ch := newTextChunk(p.content, chapterID, chapterIndex, i, p.boundaryType, p.hasHeader)
		if ch.CharacterCount > warnSize {
			c.logger.Warn("chunk exceeds warning size",
				"chapter_id", chapterID,
				"chunk_index", i,
				"size", ch.CharacterCount,
				"warning_size", warnSize)
		}
		chunks = append(chunks, ch)
	}
	attachContext(chunks)
	return chunks
}

type paragraphPiece struct {
	content      string
	boundaryType BoundaryType
	boundary     Boundary
}

// splitLongParagraph cuts a paragraph that exceeds max size into pieces.
// For each cut it searches backward from the target size for a sentence
// boundary within 30% of the target, then forward within the same window,
// and finally force-splits at the target size. The final under-max
// remainder is returned separately so it can merge with following text.
func (c *CharacterChunker) splitLongParagraph(para string) ([]paragraphPiece, string) {
	var pieces []paragraphPiece
	runes := []rune(para)
	target := c.cfg.TargetSize
	maxSize := c.cfg.MaxSize()
	window := int(0.3 * float64(target))

	for len(runes) > maxSize {
		text := string(runes)
		cut := 0
		bt := BoundarySentenceEnd
		fallback := false

		res := c.detector.FindSentenceBoundary(text, target, boundary.Backward, window, c.cfg.SentenceTerminators)
		if res.Confidence < 1.0 || res.Position <= 0 {
			res = c.detector.FindSentenceBoundary(text, target, boundary.Forward, window, c.cfg.SentenceTerminators)
		}
		if res.Confidence >= 1.0 && res.Position > 0 && res.Position < len(runes) {
			cut = res.Position
		} else {
			cut = target
			bt = BoundaryForcedSize
			fallback = true
			c.logger.Warn("no sentence boundary near target, forcing split",
				"target", target,
				"window", window,
				"paragraph_size", len(runes))
		}

		pieces = append(pieces, paragraphPiece{
			content:      strings.TrimSpace(string(runes[:cut])),
			boundaryType: bt,
			boundary: Boundary{
				Position:     cut,
				Type:         bt,
				Confidence:   res.Confidence,
				Terminator:   res.Terminator,
				FallbackUsed: fallback,
			},
		})
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \t\n"))
	}

	return pieces, strings.TrimSpace(string(runes))
}

// attachContext fills ContextBefore/ContextAfter from neighboring chunks.
// The first chunk has no before-context, the last no after-context.
func attachContext(chunks []TextChunk) {
	for i := range chunks {
		if i > 0 {
			chunks[i].ContextBefore = tailRunes(chunks[i-1].Content, contextWindow)
		}
		if i < len(chunks)-1 {
			chunks[i].ContextAfter = headRunes(chunks[i+1].Content, contextWindow)
		}
	}
}

// ChunkChapter chunks a chapter in place and returns it.
func (c *CharacterChunker) ChunkChapter(ch *Chapter) *Chapter {
	ch.Chunks = c.ChunkText(ch.OriginalContent, ch.ChapterID, ch.ChapterIndex)
	return ch
}

func splitParagraphs(text string) []string {
	raw := paragraphSplitRe.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isHeaderParagraph reports whether a paragraph is a single header line.
func isHeaderParagraph(para string) bool {
	if strings.Contains(para, "\n") {
		return false
	}
	return boundary.IsHeaderLine(para)
}
