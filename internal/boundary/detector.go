// Package boundary locates safe sentence and paragraph break points in raw
// text. Detection guards against abbreviations, URLs, decimal numbers, and
// ellipses so that chunking never splits mid-sentence.
package boundary

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Direction controls which way FindSentenceBoundary scans from its start
// position.
type Direction int

const (
	Backward Direction = iota
	Forward
)

// Result is the outcome of a sentence boundary search. Position is a rune
// index into the scanned text. Confidence is in [0,1]; anything below 1.0
// means the caller should consider a fallback strategy.
type Result struct {
	Position   int
	Terminator string
	Confidence float64
}

const (
	// urlLookback bounds how far back the URL guard scans for a scheme.
	urlLookback = 100

	// fallbackConfidence is reported when no boundary exists in the window.
	fallbackConfidence = 0.3
)

// DefaultTerminators is the terminator set used when a chunking
// configuration does not supply its own. Multi-rune terminators are listed
// so that longest-first matching prefers them over the bare period.
var DefaultTerminators = []string{`."`, ".”", ".’", "!", "?", "。", "！", "？", "."}

// closingPunct are runes allowed to directly follow a terminator.
var closingPunct = map[rune]bool{
	')': true, ']': true, '}': true,
	'"': true, '\'': true,
	'”': true, '’': true, '»': true, '」': true, '』': true,
}

// Detector finds sentence and paragraph boundaries. The zero value is not
// usable; construct with NewDetector.
type Detector struct {
	abbreviations map[string]bool
}

// NewDetector returns a Detector with the built-in abbreviation table.
func NewDetector() *Detector {
	return &Detector{abbreviations: knownAbbreviations()}
}

// FindSentenceBoundary scans up to maxDistance runes from start in the given
// direction for a valid sentence terminator. The returned position is the
// rune index immediately after the terminator. When nothing valid is found
// the original start is returned with fallback confidence so the caller can
// force a split; degenerate input reports confidence 0.
func (d *Detector) FindSentenceBoundary(text string, start int, dir Direction, maxDistance int, terminators []string) Result {
	runes := []rune(text)
	if len(runes) == 0 || start < 0 || start > len(runes) {
		return Result{Position: start, Confidence: 0}
	}
	if len(terminators) == 0 {
		terminators = DefaultTerminators
	}
	// Longest first so `."` wins over `.`.
	sorted := make([]string, len(terminators))
	copy(sorted, terminators)
	sortByLengthDesc(sorted)

	step := 1
	if dir == Backward {
		step = -1
	}

	for dist := 0; dist <= maxDistance; dist++ {
		pos := start + dist*step
		if pos < 0 || pos >= len(runes) {
			break
		}
		for _, term := range sorted {
			tr := []rune(term)
			if !matchesAt(runes, pos, tr) {
				continue
			}
			end := pos + len(tr)
			if !d.validTerminator(runes, pos, end, tr) {
				continue
			}
			return Result{Position: end, Terminator: term, Confidence: 1.0}
		}
	}

	return Result{Position: start, Confidence: fallbackConfidence}
}

// validTerminator applies the abbreviation, URL, decimal, and ellipsis
// guards to a terminator candidate spanning runes[pos:end].
func (d *Detector) validTerminator(runes []rune, pos, end int, term []rune) bool {
	// Must be followed by whitespace, EOF, or closing punctuation.
	if end < len(runes) {
		next := runes[end]
		if !unicode.IsSpace(next) && !closingPunct[next] {
			return false
		}
	}

	if term[0] != '.' {
		return true
	}

	// Ellipsis: the period is adjacent to another period.
	if end < len(runes) && runes[end] == '.' {
		return false
	}
	if pos > 0 && runes[pos-1] == '.' {
		return false
	}

	// Decimal number: digit on both sides of the period.
	if pos > 0 && end < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[end]) {
		return false
	}

	if d.insideAbbreviation(runes, pos) {
		return false
	}
	if insideURL(runes, pos) {
		return false
	}
	return true
}

// insideAbbreviation reports whether the period at pos terminates a known
// abbreviation, or a single uppercase initial ("A.", "B.").
func (d *Detector) insideAbbreviation(runes []rune, pos int) bool {
	// Collect the token preceding the period, back to whitespace.
	wordStart := pos
	for wordStart > 0 && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}
	token := string(runes[wordStart:pos])
	token = strings.TrimLeft(token, "\"'“‘([{")
	if token == "" {
		return false
	}

	tr := []rune(token)
	if len(tr) == 1 && unicode.IsUpper(tr[0]) && unicode.IsLetter(tr[0]) {
		return true
	}
	return d.abbreviations[strings.ToLower(token)]
}

// insideURL reports whether the rune at pos falls inside a URL. The guard
// walks back to the nearest whitespace (bounded by urlLookback) and checks
// the token for a scheme or www prefix.
func insideURL(runes []rune, pos int) bool {
	tokenStart := pos
	for tokenStart > 0 && pos-tokenStart < urlLookback && !unicode.IsSpace(runes[tokenStart-1]) {
		tokenStart--
	}
	token := strings.ToLower(string(runes[tokenStart:pos]))
	return strings.HasPrefix(token, "http://") ||
		strings.HasPrefix(token, "https://") ||
		strings.HasPrefix(token, "www.")
}

var (
	paragraphGapRe = regexp.MustCompile(`\n[ \t]*\n`)
	brRunRe        = regexp.MustCompile(`(?i)(?:<br\s*/?>[ \t]*){2,}`)
)

// DetectParagraphBoundaries returns the rune positions immediately after
// each paragraph break: a blank line, or a run of two or more <br/> tags.
// Positions are sorted and deduplicated.
func DetectParagraphBoundaries(text string) []int {
	byteToRune := buildByteToRuneIndex(text)

	seen := make(map[int]bool)
	var out []int
	for _, loc := range paragraphGapRe.FindAllStringIndex(text, -1) {
		p := byteToRune[loc[1]]
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, loc := range brRunRe.FindAllStringIndex(text, -1) {
		p := byteToRune[loc[1]]
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

var headerPatternRe = regexp.MustCompile(`(?i)^\s*(chapter|part|section)\s+([0-9]+|[ivxlcdm]+)\b`)

// IsHeaderLine reports whether a line looks like a heading rather than body
// text: markdown hashes, "Chapter N" style labels, ALL-CAPS lines, or short
// title-case lines without terminal punctuation.
func IsHeaderLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	if headerPatternRe.MatchString(trimmed) {
		return true
	}
	if endsWithTerminal(trimmed) {
		return false
	}

	words := strings.Fields(trimmed)
	if len([]rune(trimmed)) >= 100 || len(words) == 0 || len(words) > 10 {
		return false
	}
	if isAllCaps(trimmed) {
		return true
	}
	return isTitleCase(words)
}

func endsWithTerminal(s string) bool {
	r := []rune(s)
	switch r[len(r)-1] {
	case '.', '!', '?', ',', ';', ':', '。', '！', '？':
		return true
	}
	return false
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isTitleCase(words []string) bool {
	capped := 0
	for _, w := range words {
		r := []rune(w)
		if unicode.IsLetter(r[0]) && unicode.IsUpper(r[0]) {
			capped++
		}
	}
	// Minor words ("of", "the") may stay lowercase; require a clear majority.
	return capped*3 >= len(words)*2
}

func matchesAt(runes []rune, pos int, term []rune) bool {
	if pos+len(term) > len(runes) {
		return false
	}
	for i, r := range term {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}

// buildByteToRuneIndex maps every byte offset of text (including len(text))
// to its rune index, for translating regexp byte offsets.
func buildByteToRuneIndex(text string) []int {
	idx := make([]int, len(text)+1)
	runeIdx := 0
	for byteIdx := range text {
		idx[byteIdx] = runeIdx
		runeIdx++
	}
	idx[len(text)] = runeIdx
	// Fill gaps left by multi-byte runes.
	for i := 1; i < len(idx); i++ {
		if idx[i] == 0 && i != 0 {
			idx[i] = idx[i-1]
		}
	}
	return idx
}

func sortByLengthDesc(terms []string) {
	sort.SliceStable(terms, func(i, j int) bool {
		return len([]rune(terms[i])) > len([]rune(terms[j]))
	})
}
