// Package pipeline wires the translation core together: tag preservation,
// chunking, per-chunk translation with local placeholder indices, and
// final reassembly. The chunk loop itself lives with the job runner; this
// package owns the transformations between its steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkaplan/chapterwise/internal/chunker"
	"github.com/mkaplan/chapterwise/internal/document"
	"github.com/mkaplan/chapterwise/internal/placeholder"
	"github.com/mkaplan/chapterwise/internal/state"
	"github.com/mkaplan/chapterwise/internal/translator"
)

// ErrIncompleteState is returned when assembly is requested before every
// chunk has an outcome.
var ErrIncompleteState = errors.New("translation state incomplete")

// Pipeline prepares documents for chunked translation and processes
// chunks one at a time against a Translator.
type Pipeline struct {
	chunkCfg   chunker.Config
	translator translator.Translator
	events     *Bus
	logger     *slog.Logger
}

// New builds a pipeline. events may be nil when nobody listens.
func New(chunkCfg chunker.Config, tr translator.Translator, events *Bus, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewBus(logger)
	}
	return &Pipeline{
		chunkCfg:   chunkCfg,
		translator: tr,
		events:     events,
		logger:     logger,
	}
}

// Events exposes the bus for subscribers.
func (p *Pipeline) Events() *Bus { return p.events }

// Prepare runs the pre-translation passes over a document's chapters:
// markup is stripped into one document-global tag map, the protected text
// is chunked, and each chunk is renumbered to local placeholder indices.
// The returned state is positioned at chunk zero and ready to persist.
func (p *Pipeline) Prepare(translationID, fileName, fileType string, cfg state.Config, chapters []document.Chapter) (*state.TranslationState, error) {
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no chapters", document.ErrMalformedDocument)
	}

	var all strings.Builder
	for _, ch := range chapters {
		all.WriteString(ch.Content)
	}
	format := placeholder.DetectFormat(all.String())

	preserver := placeholder.NewTagPreserver(format)
	mapper := placeholder.NewIndexMapper(format)
	chk := chunker.NewCharacterChunker(p.chunkCfg, p.logger)

	globalTagMap := make(map[string]string)
	var chunks []placeholder.Chunk
	for _, ch := range chapters {
		protected, tagMap := preserver.PreserveTags(ch.Content)
		for token, orig := range tagMap {
			globalTagMap[token] = orig
		}
		textChunks := chk.ChunkText(protected, ch.ID, ch.Index)
		for _, tc := range textChunks {
			chunks = append(chunks, mapper.ToLocalEnclosed(tc.Content, globalTagMap))
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no translatable content", document.ErrMalformedDocument)
	}

	st := state.New(translationID, fileName, fileType, cfg, chunks, globalTagMap, format)
	p.logger.Info("prepared translation",
		"translation_id", translationID,
		"chapters", len(chapters),
		"chunks", len(chunks),
		"placeholders", len(globalTagMap),
		"format", format)
	return st, nil
}

// Outcome is the result of processing one chunk.
type Outcome struct {
	ChunkIndex int
	// Restored is the chunk result with global placeholder indices and
	// boundary markup reattached. On failure it is the fallback text.
	Restored string
	Failed   bool
	Err      error
}

// ProcessChunk translates the chunk at the state's cursor, restores global
// indices, advances the state, and publishes the matching event. A failed
// translation degrades to the fallback text; the error is reported in the
// outcome but never propagated, so one bad chunk cannot abort the job.
func (p *Pipeline) ProcessChunk(ctx context.Context, st *state.TranslationState, cm *translator.ContextManager) (Outcome, error) {
	if st.Complete() {
		return Outcome{}, fmt.Errorf("%w: no chunks remaining", ErrIncompleteState)
	}
	idx := st.CurrentChunkIndex
	c := st.Chunks[idx]
	mapper := placeholder.NewIndexMapper(st.Format)

	p.events.Publish(Event{
		Type:          EventChunkStarted,
		TranslationID: st.TranslationID,
		ChunkIndex:    idx,
		TotalChunks:   len(st.Chunks),
	})

	out := Outcome{ChunkIndex: idx}
	translated, err := p.translator.TranslateChunk(ctx, translator.Request{
		Text:           c.Text,
		SourceLanguage: st.Config.SourceLanguage,
		TargetLanguage: st.Config.TargetLanguage,
		Context:        cm.AdjustContextForChunk(len([]rune(c.Text)), st.Config.ModelName),
	})
	if err == nil {
		out.Restored, err = mapper.ToGlobal(translated, c)
	}
	if err != nil {
		// Context cancellation is not a chunk failure: surface it so the
		// runner can checkpoint and stop at the current index.
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		out.Failed = true
		out.Err = err
		out.Restored = mapper.Fallback(c)
		p.logger.Warn("chunk fell back to original text",
			"translation_id", st.TranslationID,
			"chunk_index", idx,
			"error", err)
	}

	if err := st.Advance(out.Restored); err != nil {
		return Outcome{}, err
	}
	cm.Record(out.Restored)

	evType := EventChunkCompleted
	errMsg := ""
	if out.Failed {
		evType = EventChunkFailed
		errMsg = out.Err.Error()
	}
	p.events.Publish(Event{
		Type:          evType,
		TranslationID: st.TranslationID,
		ChunkIndex:    idx,
		TotalChunks:   len(st.Chunks),
		Error:         errMsg,
	})
	return out, nil
}

// Assemble joins every chunk outcome in order and restores the global tag
// map, yielding the final document text. The placeholder multiset of the
// assembled text always matches the tag map, whether or not chunks fell
// back.
func (p *Pipeline) Assemble(st *state.TranslationState) (string, error) {
	if !st.Complete() {
		return "", fmt.Errorf("%w: %d of %d chunks processed",
			ErrIncompleteState, st.CurrentChunkIndex, len(st.Chunks))
	}
	joined := strings.Join(st.TranslatedChunks, "\n\n")
	preserver := placeholder.NewTagPreserver(st.Format)
	return preserver.RestoreTags(joined, st.GlobalTagMap), nil
}
