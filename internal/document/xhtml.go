package document

import (
	"fmt"
	"regexp"
	"strings"
)

// File is one named input file's raw content.
type File struct {
	Name    string
	Content string
}

var (
	bodyRe    = regexp.MustCompile(`(?is)<body[^>]*>`)
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingRe = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	tagStrip  = regexp.MustCompile(`<[^>]*>`)
)

// XHTMLChapters validates a set of XHTML/HTML files and returns one
// chapter per file, in input order. A file without a body element is a
// structural error: the pipeline refuses to guess at broken containers.
func XHTMLChapters(files []File) ([]Chapter, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no content files", ErrMalformedDocument)
	}
	chapters := make([]Chapter, 0, len(files))
	for i, f := range files {
		if strings.TrimSpace(f.Content) == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformedDocument, f.Name)
		}
		if !bodyRe.MatchString(f.Content) {
			return nil, fmt.Errorf("%w: %s has no body element", ErrMalformedDocument, f.Name)
		}
		chapters = append(chapters, Chapter{
			ID:      f.Name,
			Index:   i,
			Title:   xhtmlTitle(f.Content),
			Content: f.Content,
		})
	}
	return chapters, nil
}

// xhtmlTitle prefers the document title, then the first h1-h3 heading.
func xhtmlTitle(content string) string {
	if m := titleRe.FindStringSubmatch(content); m != nil {
		if t := cleanInline(m[1]); t != "" {
			return t
		}
	}
	if m := headingRe.FindStringSubmatch(content); m != nil {
		return cleanInline(m[1])
	}
	return ""
}

func cleanInline(s string) string {
	return strings.TrimSpace(tagStrip.ReplaceAllString(s, ""))
}
