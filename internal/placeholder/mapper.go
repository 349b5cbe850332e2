package placeholder

import (
	"errors"
	"strings"
)

// ErrPlaceholderMismatch marks a translated chunk whose placeholder set
// does not match what was sent. The caller falls back to the original text.
var ErrPlaceholderMismatch = errors.New("translated text does not preserve placeholders")

// Chunk is one translation unit carved from placeholder-protected text.
// Text carries local indices 0..k-1; GlobalIndices[l] is the global index
// local index l stands for. LocalTagMap maps each local token to the
// original content it protects, plus the boundary sentinels when edge
// markup was stripped.
type Chunk struct {
	Text          string            `json:"text"`
	LocalTagMap   map[string]string `json:"local_tag_map"`
	GlobalIndices []int             `json:"global_indices"`
	GlobalOffset  int               `json:"global_offset"`
}

// IndexMapper converts chunk text between global and local placeholder
// indices. All rewriting is two-pass through unique temporary markers:
// a direct in-place replace corrupts tokens whose rendering is a substring
// of another token's rendering.
type IndexMapper struct {
	format Format
}

// NewIndexMapper builds a mapper for the given token format.
func NewIndexMapper(format Format) *IndexMapper {
	return &IndexMapper{format: format}
}

// ToLocal renumbers the global placeholders of one chunk to local indices.
// globalTagMap supplies the original content recorded in the local map.
func (m *IndexMapper) ToLocal(globalText string, globalTagMap map[string]string) Chunk {
	return m.toLocal(globalText, "", "", globalTagMap)
}

// ToLocalEnclosed is ToLocal for chunks cut from inside enclosing markup:
// leading and trailing runs of markup placeholders are stripped into the
// boundary sentinels so the translator never sees them, and they are
// reattached on restoration even when the translation fails.
func (m *IndexMapper) ToLocalEnclosed(globalText string, globalTagMap map[string]string) Chunk {
	body, prefix, suffix := stripEdgeTokens(globalText, m.format, globalTagMap)
	return m.toLocal(body, prefix, suffix, globalTagMap)
}

func (m *IndexMapper) toLocal(body, prefix, suffix string, globalTagMap map[string]string) Chunk {
	// Distinct global indices in order of first appearance.
	seen := make(map[int]bool)
	var globals []int
	for _, g := range m.format.Indices(body) {
		if !seen[g] {
			seen[g] = true
			globals = append(globals, g)
		}
	}

	// Pass one: global token -> unique marker.
	for l, g := range globals {
		body = strings.ReplaceAll(body, m.format.Token(g), restoreMarker(l))
	}
	// Pass two: marker -> local token.
	localMap := make(map[string]string, len(globals)+2)
	for l, g := range globals {
		token := m.format.Token(l)
		body = strings.ReplaceAll(body, restoreMarker(l), token)
		if orig, ok := globalTagMap[m.format.Token(g)]; ok {
			localMap[token] = orig
		}
	}
	if prefix != "" {
		localMap[BoundaryPrefixKey] = prefix
	}
	if suffix != "" {
		localMap[BoundarySuffixKey] = suffix
	}

	offset := 0
	if len(globals) > 0 {
		offset = globals[0]
	}
	return Chunk{
		Text:          body,
		LocalTagMap:   localMap,
		GlobalIndices: globals,
		GlobalOffset:  offset,
	}
}

// ToGlobal validates a translated chunk and rewrites its local indices
// back to global ones, reattaching the boundary sentinels. On validation
// failure it returns ErrPlaceholderMismatch and the caller must use
// Fallback instead.
func (m *IndexMapper) ToGlobal(translated string, c Chunk) (string, error) {
	if err := m.validate(translated, c); err != nil {
		return "", err
	}
	return m.restore(translated, c), nil
}

// Fallback returns the chunk's original untranslated text with global
// indices and boundary markup restored. It never fails and never returns
// an empty string for a non-empty chunk: a failed chunk degrades to
// preserved original content, not to a hole in the document.
func (m *IndexMapper) Fallback(c Chunk) string {
	return m.restore(c.Text, c)
}

// restore rewrites local indices to global ones in two passes and wraps
// the result in the chunk's boundary sentinels.
func (m *IndexMapper) restore(text string, c Chunk) string {
	for l := range c.GlobalIndices {
		text = strings.ReplaceAll(text, m.format.Token(l), restoreMarker(l))
	}
	for l, g := range c.GlobalIndices {
		text = strings.ReplaceAll(text, restoreMarker(l), m.format.Token(g))
	}
	return c.LocalTagMap[BoundaryPrefixKey] + text + c.LocalTagMap[BoundarySuffixKey]
}

// validate checks that the translated text carries exactly the local
// placeholder multiset of the source chunk.
func (m *IndexMapper) validate(translated string, c Chunk) error {
	return m.format.ValidateTokens(c.Text, translated)
}

func countIndices(indices []int) map[int]int {
	m := make(map[int]int, len(indices))
	for _, n := range indices {
		m[n]++
	}
	return m
}

// stripEdgeTokens splits off runs of markup placeholder tokens (and the
// whitespace between them) at the very start and end of text. Those runs
// are enclosing markup such as <body><p> that must survive even when the
// chunk's translation fails. Only tokens whose mapped content is a markup
// tag are stripped; inline placeholders at the edges stay in the body.
func stripEdgeTokens(text string, f Format, tagMap map[string]string) (body, prefix, suffix string) {
	re := f.tokenPattern()

	body = text
	for {
		trimmed := strings.TrimLeft(body, " \t\n")
		loc := re.FindStringIndex(trimmed)
		if loc == nil || loc[0] != 0 || !isMarkupTag(tagMap[trimmed[:loc[1]]]) {
			break
		}
		cut := len(body) - len(trimmed) + loc[1]
		prefix += body[:cut]
		body = body[cut:]
	}
	for {
		trimmed := strings.TrimRight(body, " \t\n")
		locs := re.FindAllStringIndex(trimmed, -1)
		if len(locs) == 0 {
			break
		}
		last := locs[len(locs)-1]
		if last[1] != len(trimmed) || !isMarkupTag(tagMap[trimmed[last[0]:last[1]]]) {
			break
		}
		cut := last[0]
		suffix = body[cut:] + suffix
		body = body[:cut]
	}
	return body, prefix, suffix
}

// isMarkupTag reports whether a protected span is a structural markup tag
// rather than inline technical content.
func isMarkupTag(content string) bool {
	return strings.HasPrefix(content, "<") && strings.HasSuffix(content, ">")
}
