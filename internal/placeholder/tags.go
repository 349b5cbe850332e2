package placeholder

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// markup that is always protected, regardless of technical-content
// detection: comments, doctype/processing instructions, then tags.
var markupRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?is)<!DOCTYPE[^>]*>`),
	regexp.MustCompile(`(?s)<\?.*?\?>`),
	regexp.MustCompile(`</?[a-zA-Z][^>]*>`),
}

// TagPreserver strips markup and technical content into a global
// placeholder map and restores it after translation. Global indices grow
// monotonically for the life of the preserver and are never reused, so one
// preserver serves one document.
type TagPreserver struct {
	format   Format
	detector *TechnicalContentDetector
	next     int
}

// NewTagPreserver builds a preserver emitting tokens in the given format.
func NewTagPreserver(format Format) *TagPreserver {
	return &TagPreserver{
		format:   format,
		detector: NewTechnicalContentDetector(),
	}
}

// Format returns the token format the preserver emits.
func (p *TagPreserver) Format() Format { return p.format }

// PreserveTags replaces every markup tag and technical span in html with a
// global placeholder token and returns the protected text together with
// the token-to-original map. Repeated calls on the same preserver extend
// the index space; merge the returned maps to keep one per document.
func (p *TagPreserver) PreserveTags(html string) (string, map[string]string) {
	var spans []Match
	for _, re := range markupRes {
		for _, loc := range re.FindAllStringIndex(html, -1) {
			spans = append(spans, Match{
				Start:    loc[0],
				End:      loc[1],
				Priority: priorityBlock + 1,
				Kind:     "markup",
				Content:  html[loc[0]:loc[1]],
			})
		}
	}
	spans = append(spans, p.detector.FindAllTechnicalContent(html)...)
	spans = resolveOverlaps(spans)

	tagMap := make(map[string]string, len(spans))
	var b strings.Builder
	b.Grow(len(html))
	pos := 0
	for _, s := range spans {
		if s.Start < pos {
			continue
		}
		b.WriteString(html[pos:s.Start])
		token := p.format.Token(p.next)
		p.next++
		tagMap[token] = s.Content
		b.WriteString(token)
		pos = s.End
	}
	b.WriteString(html[pos:])
	return b.String(), tagMap
}

// RestoreTags replaces every global placeholder token in text with its
// original content. Tokens are processed in descending index order so that
// a lower-indexed token is never matched inside the text of a replacement
// already made for a higher one.
func (p *TagPreserver) RestoreTags(text string, tagMap map[string]string) string {
	type entry struct {
		index int
		token string
	}
	entries := make([]entry, 0, len(tagMap))
	for token := range tagMap {
		n, ok := p.format.ParseToken(token)
		if !ok {
			continue
		}
		entries = append(entries, entry{index: n, token: token})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].index > entries[j].index })

	for _, e := range entries {
		text = strings.ReplaceAll(text, e.token, tagMap[e.token])
	}
	return text
}

// NextIndex reports the next global index the preserver would assign.
func (p *TagPreserver) NextIndex() int { return p.next }

// GlobalIndicesOf returns the sorted distinct global indices present in a
// tag map. Useful for completeness checks after reassembly.
func GlobalIndicesOf(tagMap map[string]string, format Format) []int {
	out := make([]int, 0, len(tagMap))
	for token := range tagMap {
		if n, ok := format.ParseToken(token); ok {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// sentinel keys in a chunk's local tag map holding markup stripped from
// the chunk's outer edges. Unlike numbered entries they are restored by
// plain concatenation, on both the success and the fallback path.
const (
	BoundaryPrefixKey = "__boundary_prefix__"
	BoundarySuffixKey = "__boundary_suffix__"
)

// restoreMarker is the temporary token used by two-pass index rewriting.
func restoreMarker(local int) string {
	return "__RESTORE_" + strconv.Itoa(local) + "__"
}
