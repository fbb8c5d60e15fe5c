package merge

import (
	"regexp"
	"strings"
)

// section locates a level-2 heading and its body in a Markdown document.
// All offsets are byte offsets into the document.
type section struct {
	start int // first byte of the heading line
	end   int // first byte of the next heading of level 1 or 2, or len(doc)
}

// findSection returns the first heading line matching title that lies
// outside fenced code. title must only match level-2 headings. Headings inside fences never open or close a
// section.
func findSection(doc string, title *regexp.Regexp) (section, bool) {
	var (
		found   section
		open    bool
		inFence bool
		fence   string
		offset  int
	)

	for offset < len(doc) {
		lineEnd := strings.IndexByte(doc[offset:], '\n')
		next := len(doc)
		if lineEnd >= 0 {
			next = offset + lineEnd + 1
		}
		line := strings.TrimRight(doc[offset:next], "\r\n")

		if marker := fenceMarker(line); marker != "" {
			switch {
			case !inFence:
				inFence, fence = true, marker
			case strings.HasPrefix(marker, fence):
				inFence, fence = false, ""
			}
			offset = next
			continue
		}

		if !inFence {
			level := headingLevel(line)
			switch {
			case open && level > 0 && level <= 2:
				found.end = offset
				return found, true
			case !open && title.MatchString(line):
				found.start = offset
				open = true
			}
		}
		offset = next
	}

	if open {
		found.end = len(doc)
		return found, true
	}
	return section{}, false
}

// demoteHeadings rewrites level 1 and 2 headings outside fenced code as
// level 3 headings.
func demoteHeadings(doc string) string {
	lines := strings.SplitAfter(doc, "\n")
	var (
		inFence bool
		fence   string
	)
	for i, line := range lines {
		bare := strings.TrimRight(line, "\r\n")
		if marker := fenceMarker(bare); marker != "" {
			switch {
			case !inFence:
				inFence, fence = true, marker
			case strings.HasPrefix(marker, fence):
				inFence, fence = false, ""
			}
			continue
		}
		if inFence {
			continue
		}
		if level := headingLevel(bare); level == 1 || level == 2 {
			trimmed := strings.TrimLeft(line, " ")
			lines[i] = "###" + trimmed[level:]
		}
	}
	return strings.Join(lines, "")
}

// headingLevel returns the ATX heading level of line, or 0.
func headingLevel(line string) int {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return 0
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0
	}
	if level < len(trimmed) && trimmed[level] != ' ' && trimmed[level] != '\t' {
		return 0
	}
	return level
}

// fenceMarker returns the ``` or ~~~ run opening line, or "".
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return ""
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return ""
	}
	return trimmed[:n]
}

// splice replaces doc[s.start:s.end] with block, keeping one blank line
// between block and whatever heading follows.
func splice(doc string, s section, block string) string {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	if s.end < len(doc) {
		block += "\n"
	}
	return doc[:s.start] + block + doc[s.end:]
}

// appendSection adds block at the end of doc separated by a blank line.
func appendSection(doc, block string) string {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	return doc + "\n\n" + block
}
