package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cue is one SRT subtitle entry. Index and Timing pass through the
// pipeline untouched; only Text is translated.
type Cue struct {
	Index  int
	Timing string
	Text   string
}

var timingRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// ParseSRT parses subtitle content into cues. Blank-line separated blocks
// of index, timing line, then text lines.
func ParseSRT(content string) ([]Cue, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")

	var cues []Cue
	for _, block := range blocks {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if len(lines) < 2 {
			return nil, fmt.Errorf("%w: subtitle block %q has no timing line", ErrMalformedDocument, lines[0])
		}
		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: bad subtitle index %q", ErrMalformedDocument, lines[0])
		}
		if !timingRe.MatchString(strings.TrimSpace(lines[1])) {
			return nil, fmt.Errorf("%w: bad timing line %q in cue %d", ErrMalformedDocument, lines[1], idx)
		}
		cues = append(cues, Cue{
			Index:  idx,
			Timing: strings.TrimSpace(lines[1]),
			Text:   strings.Join(lines[2:], "\n"),
		})
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: no subtitle cues found", ErrMalformedDocument)
	}
	return cues, nil
}

// BuildSRT renders cues back to SRT, preserving indices and timings.
func BuildSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s\n%s\n", c.Index, c.Timing, c.Text)
	}
	return b.String()
}

// SRTChapter joins all cue texts into one chapter so cue text flows
// through chunking as a single document. Each cue's text is separated by a
// blank line so paragraph boundaries fall between cues.
func SRTChapter(name string, cues []Cue) Chapter {
	texts := make([]string, len(cues))
	for i, c := range cues {
		texts[i] = c.Text
	}
	return Chapter{
		ID:      name,
		Index:   0,
		Title:   "",
		Content: strings.Join(texts, "\n\n"),
	}
}

// ApplyTranslations writes translated paragraph texts back onto cues, one
// paragraph per cue, preserving index and timing. A count mismatch is a
// structural error.
func ApplyTranslations(cues []Cue, texts []string) ([]Cue, error) {
	if len(texts) != len(cues) {
		return nil, fmt.Errorf("%w: %d translated texts for %d cues", ErrMalformedDocument, len(texts), len(cues))
	}
	out := make([]Cue, len(cues))
	for i, c := range cues {
		c.Text = texts[i]
		out[i] = c
	}
	return out, nil
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
