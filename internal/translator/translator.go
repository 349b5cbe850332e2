// Package translator sends placeholder-protected chunks to an LLM and
// enforces the placeholder contract on what comes back. The rest of the
// pipeline treats any provider through the Translator interface; a
// non-conforming or absent result is an error, never a partial success.
package translator

import (
	"context"
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrTranslationFailed wraps any terminal translation failure after
// retries are exhausted. The caller responds by taking the fallback path
// for the chunk, not by aborting the job.
var ErrTranslationFailed = errors.New("chunk translation failed")

// Request is one chunk translation call.
type Request struct {
	// Text is the chunk content with local placeholder indices.
	Text string

	// SourceLanguage and TargetLanguage are display names ("English",
	// "French") as given to the LLM prompt.
	SourceLanguage string
	TargetLanguage string

	// Context is the tail of the preceding translated chunk, threaded
	// through for terminology and tone continuity. May be empty.
	Context string
}

// Translator converts one chunk of text. Implementations must return the
// translated text with every placeholder token intact, or an error.
type Translator interface {
	TranslateChunk(ctx context.Context, req Request) (string, error)
	Name() string
}

// LanguageName resolves a BCP 47 code ("fr", "pt-BR") to its English
// display name for use in prompts. Unparseable input is returned as-is so
// callers may pass display names directly.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
