package chunk

import (
	"regexp"
	"strings"
)

// sectionHeading matches heading lines at level >= 2. Splitting happens
// at the start of each match so headings stay with the text that follows.
var sectionHeading = regexp.MustCompile(`(?m)^##+ `)

// Markdown splits a file at every heading of level >= 2, keeping each
// heading together with the text up to the next such heading. Empty
// fragments are discarded. Every chunk carries the entire file content
// for whole-file promotion at query time.
func Markdown(content, path string) []*Chunk {
	var chunks []*Chunk
	for _, fragment := range splitAtHeadings(content) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		chunks = append(chunks, &Chunk{
			Content:     fragment,
			Kind:        KindMarkdownSection,
			Path:        path,
			FullContent: content,
		})
	}
	return chunks
}

// splitAtHeadings cuts content at the start of each level >= 2 heading
// line, preserving all text.
func splitAtHeadings(content string) []string {
	cuts := []int{0}
	for _, loc := range sectionHeading.FindAllStringIndex(content, -1) {
		if loc[0] != 0 {
			cuts = append(cuts, loc[0])
		}
	}
	cuts = append(cuts, len(content))

	parts := make([]string, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		parts = append(parts, content[cuts[i]:cuts[i+1]])
	}
	return parts
}
