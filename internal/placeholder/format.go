// Package placeholder implements the two-level placeholder protocol that
// protects markup and technical content across chunked translation. Tags
// are replaced with document-global index tokens, each chunk renumbers its
// tokens to a small local range before translation, and restoration maps
// local indices back to global ones even when a chunk's translation failed.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Format selects the placeholder token shape for a document. It is chosen
// once per document and used for every chunk of that document.
type Format int

const (
	// FormatDouble renders index n as "[[n]]". Collision-safe even when
	// the source text contains square brackets.
	FormatDouble Format = iota

	// FormatSingle renders index n as "[n]". Only safe when the source
	// text contains no square brackets at all.
	FormatSingle
)

// DetectFormat picks the token shape for a document: any square bracket in
// the source forces the double form.
func DetectFormat(text string) Format {
	if strings.ContainsAny(text, "[]") {
		return FormatDouble
	}
	return FormatSingle
}

// String implements fmt.Stringer for logging.
func (f Format) String() string {
	switch f {
	case FormatDouble:
		return "double"
	case FormatSingle:
		return "single"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a serialized format name back to its value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "double":
		return FormatDouble, nil
	case "single":
		return FormatSingle, nil
	default:
		return 0, fmt.Errorf("unknown placeholder format %q", s)
	}
}

// MarshalJSON serializes the format by name so persisted snapshots stay
// readable and stable across reorderings of the enum.
func (f Format) MarshalJSON() ([]byte, error) {
	switch f {
	case FormatDouble, FormatSingle:
		return []byte(strconv.Quote(f.String())), nil
	default:
		return nil, fmt.Errorf("unknown placeholder format %d", int(f))
	}
}

// UnmarshalJSON parses a format name, rejecting unknown values.
func (f *Format) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("placeholder format: %w", err)
	}
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Prefix returns the token opening characters.
func (f Format) Prefix() string {
	if f == FormatSingle {
		return "["
	}
	return "[["
}

// Suffix returns the token closing characters.
func (f Format) Suffix() string {
	if f == FormatSingle {
		return "]"
	}
	return "]]"
}

// Token renders the placeholder token for index n.
func (f Format) Token(n int) string {
	return f.Prefix() + strconv.Itoa(n) + f.Suffix()
}

var (
	doubleTokenRe = regexp.MustCompile(`\[\[(\d+)\]\]`)
	singleTokenRe = regexp.MustCompile(`\[(\d+)\]`)
)

// tokenPattern returns the regexp matching this format's tokens, with the
// index in capture group 1.
func (f Format) tokenPattern() *regexp.Regexp {
	if f == FormatSingle {
		return singleTokenRe
	}
	return doubleTokenRe
}

// ParseToken extracts the index from a full placeholder token. The second
// return is false when s is not exactly one token of this format.
func (f Format) ParseToken(s string) (int, bool) {
	m := f.tokenPattern().FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateTokens checks that translated carries exactly the placeholder
// multiset of original. Used both by the restore path and by translators
// that retry before giving a chunk up.
func (f Format) ValidateTokens(original, translated string) error {
	want := countIndices(f.Indices(original))
	got := countIndices(f.Indices(translated))
	for n, c := range want {
		if got[n] != c {
			return fmt.Errorf("%w: index %d appears %d times, want %d",
				ErrPlaceholderMismatch, n, got[n], c)
		}
	}
	for n := range got {
		if _, ok := want[n]; !ok {
			return fmt.Errorf("%w: unexpected index %d", ErrPlaceholderMismatch, n)
		}
	}
	return nil
}

// Indices returns every placeholder index in text, in order of appearance
// with duplicates preserved.
func (f Format) Indices(text string) []int {
	var out []int
	for _, m := range f.tokenPattern().FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
