package document

import (
	"fmt"
	"strings"

	"github.com/mkaplan/chapterwise/internal/boundary"
)

// TextChapters splits plain text into synthetic chapters on recognizable
// chapter headings. Text before the first heading becomes a chapter of its
// own; text without any headings is a single chapter named after the file.
func TextChapters(name, content string) []Chapter {
	lines := strings.Split(content, "\n")

	var chapters []Chapter
	var buf []string
	title := ""

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body == "" && title == "" {
			return
		}
		idx := len(chapters)
		chapters = append(chapters, Chapter{
			ID:      fmt.Sprintf("%s#%d", name, idx),
			Index:   idx,
			Title:   title,
			Content: body,
		})
		buf = nil
	}

	for _, line := range lines {
		if isChapterHeading(line) {
			flush()
			title = strings.TrimSpace(line)
			buf = append(buf, line)
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if len(chapters) == 0 {
		return nil
	}
	return chapters
}

// isChapterHeading accepts only strong heading signals for chapter splits.
// Plain title-case lines are too common in prose to split on; markdown
// headers and explicit Chapter/Part/Section lines are not.
func isChapterHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return boundary.IsHeaderLine(trimmed)
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range []string{"chapter ", "part ", "section "} {
		if strings.HasPrefix(lower, kw) {
			return boundary.IsHeaderLine(trimmed)
		}
	}
	return false
}
