package util

import (
	"strings"
)

// SpanLines converts a byte range in content to 1-based start and end
// line numbers. Offsets outside the content clamp to its edges.
func SpanLines(content string, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > len(content) {
		start = len(content)
	}
	if end < start {
		end = start
	}
	if end > len(content) {
		end = len(content)
	}
	first := strings.Count(content[:start], "\n") + 1
	return first, first + strings.Count(content[start:end], "\n")
}

// ExtractSnippet returns the lines around the 1-based [startLine, endLine]
// window, padded with up to maxLines of surrounding context.
func ExtractSnippet(content string, startLine, endLine, maxLines int) string {
	if maxLines <= 0 {
		maxLines = 8
	}
	lines := strings.Split(content, "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine < startLine {
		endLine = startLine
	}
	s := max(0, startLine-1-maxLines/2)
	e := min(len(lines)-1, endLine-1+maxLines/2)
	if s > e {
		return ""
	}
	return strings.Join(lines[s:e+1], "\n")
}
