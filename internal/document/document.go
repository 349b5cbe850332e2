// Package document loads the file formats the translator accepts and
// turns each into chapters the chunking core consumes: XHTML/HTML files,
// plain text with recognizable chapter headings, and SRT subtitles.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrMalformedDocument wraps structural problems in an input file that
// prevent chapter extraction. It is surfaced to the caller; the pipeline
// never guesses around a broken container.
var ErrMalformedDocument = errors.New("malformed document")

// FileType identifies an input format.
type FileType string

const (
	TypeXHTML FileType = "xhtml"
	TypeText  FileType = "txt"
	TypeSRT   FileType = "srt"
)

// DetectFileType maps a filename extension to a FileType.
func DetectFileType(name string) (FileType, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xhtml", ".html", ".htm":
		return TypeXHTML, nil
	case ".txt", ".md":
		return TypeText, nil
	case ".srt":
		return TypeSRT, nil
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", ErrMalformedDocument, ext)
	}
}

// Chapter is one translatable unit of a document, fed to the chunker as a
// whole.
type Chapter struct {
	ID      string
	Index   int
	Title   string
	Content string
}

// Load detects a file's type and extracts its chapters.
func Load(name string, content []byte) (FileType, []Chapter, error) {
	ft, err := DetectFileType(name)
	if err != nil {
		return "", nil, err
	}
	switch ft {
	case TypeXHTML:
		chapters, err := XHTMLChapters([]File{{Name: name, Content: string(content)}})
		return ft, chapters, err
	case TypeText:
		return ft, TextChapters(name, string(content)), nil
	case TypeSRT:
		cues, err := ParseSRT(string(content))
		if err != nil {
			return "", nil, err
		}
		return ft, []Chapter{SRTChapter(name, cues)}, nil
	}
	return "", nil, fmt.Errorf("%w: unhandled file type %q", ErrMalformedDocument, ft)
}
