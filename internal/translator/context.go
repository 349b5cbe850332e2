package translator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// contextTailLimit caps how much of the previous translation is carried
// into the next chunk's prompt.
const contextTailLimit = 500

// ContextManager threads translation continuity across a job's chunks:
// after each chunk it keeps the tail of the restored translation and hands
// it to the next request so terminology and tone stay consistent. The
// state serializes into the job's translation_context column, so a resumed
// job picks up the same continuity window.
type ContextManager struct {
	LastTranslation string `json:"last_sentences"`
	ChunksSeen      int    `json:"chunks_seen"`
}

// NewContextManager starts with no context.
func NewContextManager() *ContextManager { return &ContextManager{} }

// Record notes a chunk's restored translation. Failed chunks pass their
// fallback text; an empty string leaves the previous context in place.
func (c *ContextManager) Record(translated string) {
	c.ChunksSeen++
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return
	}
	c.LastTranslation = tail(translated, contextTailLimit)
}

// Current returns the context to attach to the next request.
func (c *ContextManager) Current() string { return c.LastTranslation }

// defaultPromptBudget approximates the prompt characters available when
// the model is unknown.
const defaultPromptBudget = 12000

// promptBudgets lists approximate usable prompt sizes in characters by
// model name prefix. Longest prefix wins.
var promptBudgets = map[string]int{
	"gpt-3.5": 6000,
}

// AdjustContextForChunk returns the carried context trimmed so the chunk
// plus context fit the model's prompt budget. Large chunks get less
// context; a chunk that fills the budget gets none.
func (c *ContextManager) AdjustContextForChunk(chunkSize int, modelName string) string {
	room := promptBudget(modelName) - chunkSize
	if room <= 0 {
		return ""
	}
	limit := contextTailLimit
	if room < limit {
		limit = room
	}
	return tail(c.LastTranslation, limit)
}

func promptBudget(modelName string) int {
	best := defaultPromptBudget
	bestLen := 0
	for prefix, budget := range promptBudgets {
		if strings.HasPrefix(modelName, prefix) && len(prefix) > bestLen {
			best = budget
			bestLen = len(prefix)
		}
	}
	return best
}

// Marshal serializes the context for checkpointing.
func (c *ContextManager) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal translation context: %w", err)
	}
	return data, nil
}

// RestoreContext rebuilds a context manager from a checkpointed job. An
// empty payload yields a fresh manager.
func RestoreContext(raw json.RawMessage) (*ContextManager, error) {
	c := NewContextManager()
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("unmarshal translation context: %w", err)
	}
	return c, nil
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	// Cut at a word edge when one is near.
	cut := string(r[len(r)-n:])
	if i := strings.IndexByte(cut, ' '); i > 0 && i < len(cut)/4 {
		return strings.TrimSpace(cut[i:])
	}
	return cut
}
