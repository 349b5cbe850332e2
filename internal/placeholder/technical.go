package placeholder

import (
	"regexp"
	"sort"
	"strings"
)

// Match is one span of technical content that must not be translated.
type Match struct {
	Start    int
	End      int
	Priority int
	Kind     string
	Content  string
}

// Detection priorities. When matches overlap, higher wins; on a tie the
// longer match wins.
const (
	priorityBlock      = 10 // fenced code blocks, display math
	priorityEntities   = 9  // runs of HTML entities
	priorityInline     = 5  // inline code, inline LaTeX
	priorityMeasure    = 3  // measurements and numeric ranges
	priorityIdentifier = 2  // uppercase technical identifiers
)

type techPattern struct {
	re       *regexp.Regexp
	priority int
	kind     string
}

// TechnicalContentDetector finds code, LaTeX, entity runs, measurements
// and identifiers in prose, resolving overlapping matches by priority.
type TechnicalContentDetector struct {
	patterns []techPattern
}

// NewTechnicalContentDetector builds a detector with the fixed pattern set.
func NewTechnicalContentDetector() *TechnicalContentDetector {
	return &TechnicalContentDetector{
		patterns: []techPattern{
			{regexp.MustCompile("(?s)```.*?```"), priorityBlock, "code_block"},
			{regexp.MustCompile(`(?s)\$\$.*?\$\$`), priorityBlock, "display_math"},
			{regexp.MustCompile(`(?:&(?:[a-zA-Z][a-zA-Z0-9]*|#[0-9]+|#x[0-9a-fA-F]+);){3,}`), priorityEntities, "entity_run"},
			{regexp.MustCompile("`[^`\n]+`"), priorityInline, "inline_code"},
			{regexp.MustCompile(`\$[^$\n]+\$`), priorityInline, "inline_math"},
			{regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:-|–|to)\s*\d+(?:\.\d+)?\s*(?:mm|cm|km|kg|mg|ms|min|nm|µm|GHz|MHz|kHz|Hz|GB|MB|KB|TB|°C|°F|%|m|g|s|h|V|W|A)\b`), priorityMeasure, "measurement_range"},
			{regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:mm|cm|km|kg|mg|ms|min|nm|µm|GHz|MHz|kHz|Hz|GB|MB|KB|TB|°C|°F|%|m|g|s|h|V|W|A)\b`), priorityMeasure, "measurement"},
			{regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`), priorityIdentifier, "identifier"},
		},
	}
}

// FindAllTechnicalContent returns the non-overlapping technical spans of
// text, sorted by start position.
func (d *TechnicalContentDetector) FindAllTechnicalContent(text string) []Match {
	var matches []Match
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			m := Match{
				Start:    loc[0],
				End:      loc[1],
				Priority: p.priority,
				Kind:     p.kind,
				Content:  text[loc[0]:loc[1]],
			}
			if p.kind == "inline_math" && !isLaTeXMath(m.Content) {
				continue
			}
			matches = append(matches, m)
		}
	}
	return resolveOverlaps(matches)
}

// resolveOverlaps walks matches sorted by (start, -priority) and keeps a
// later overlapping match only when it beats the previously accepted one
// on priority, or ties on priority and is longer.
func resolveOverlaps(matches []Match) []Match {
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].Priority > matches[j].Priority
	})

	var out []Match
	for _, m := range matches {
		if len(out) == 0 {
			out = append(out, m)
			continue
		}
		prev := &out[len(out)-1]
		if m.Start >= prev.End {
			out = append(out, m)
			continue
		}
		replace := m.Priority > prev.Priority ||
			(m.Priority == prev.Priority && m.End-m.Start > prev.End-prev.Start)
		if replace {
			*prev = m
		}
	}
	return out
}

var (
	mathOperatorRe = regexp.MustCompile(`[+\-*/=<>]`)
	greekMacroRe   = regexp.MustCompile(`\\(?:alpha|beta|gamma|delta|epsilon|theta|lambda|mu|pi|sigma|phi|omega|sum|int|frac|sqrt|infty)`)
	bareNumberRe   = regexp.MustCompile(`^\d+(?:\.\d{1,2})?$`)
)

// isLaTeXMath distinguishes inline math from dollar-amount prose. Structure
// characters or known macros mean math; a bare price-like number means
// currency.
func isLaTeXMath(match string) bool {
	inner := strings.TrimSpace(strings.Trim(match, "$"))
	if inner == "" {
		return false
	}
	if bareNumberRe.MatchString(inner) {
		return false
	}
	if strings.ContainsAny(inner, `_^\{}`) {
		return true
	}
	if greekMacroRe.MatchString(inner) {
		return true
	}
	return len(mathOperatorRe.FindAllString(inner, -1)) >= 2
}
