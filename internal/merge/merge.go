// Package merge assembles the agent system message: the generated knowledge
// base is spliced into a skeleton document and a canonical links section
// can be injected next to it.
package merge

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const knowledgeBaseHeading = "## Knowledge Base"

// ErrEmptyKB is returned when the knowledge base is empty or whitespace.
var ErrEmptyKB = errors.New("empty knowledge base provided")

var knowledgeBaseTitle = regexp.MustCompile(`(?i)^\s*##\s*knowledge\s+base\b`)

// Merge replaces the body of the skeleton's "## Knowledge Base" section with
// kb, or appends the section when the skeleton has none. Bytes outside the
// replaced section are left untouched. Level 1 and 2 headings in kb become
// level 3 so the section still ends where kb ends on the next merge.
func Merge(skeleton, kb string) (string, error) {
	if strings.TrimSpace(kb) == "" {
		return "", ErrEmptyKB
	}

	block := fmt.Sprintf("%s\n\n%s", knowledgeBaseHeading, demoteHeadings(kb))

	if s, ok := findSection(skeleton, knowledgeBaseTitle); ok {
		return splice(skeleton, s, block), nil
	}
	return appendSection(skeleton, block), nil
}
