package merge

import (
	"regexp"
	"strings"
)

const linksHeading = "## Website links (canonical)"

var linksTitle = regexp.MustCompile(`(?i)^\s*##\s*website\s+links\b`)

// Link is a page the agent may cite.
type Link struct {
	Title string
	URL   string
}

// InjectLinks writes the canonical links section into msg. An existing
// section is replaced; otherwise the section goes right after the knowledge
// base, or at the end of the document.
func InjectLinks(msg, websiteURL string, links []Link) string {
	block := buildLinksSection(websiteURL, links)

	if s, ok := findSection(msg, linksTitle); ok {
		return splice(msg, s, block)
	}

	if kb, ok := findSection(msg, knowledgeBaseTitle); ok {
		insertAt := section{start: kb.end, end: kb.end}
		if kb.end == len(msg) {
			return appendSection(strings.TrimRight(msg, "\n"), block)
		}
		return splice(msg, insertAt, block)
	}

	return appendSection(msg, block)
}

func buildLinksSection(websiteURL string, links []Link) string {
	var b strings.Builder
	b.WriteString(linksHeading)
	b.WriteString("\n\n")
	b.WriteString("Primary website: ")
	b.WriteString(websiteURL)
	b.WriteString("\n\n")

	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		u := strings.TrimSpace(l.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		title := strings.Join(strings.Fields(l.Title), " ")
		if title == "" {
			title = u
		}
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString(" -> ")
		b.WriteString(u)
		b.WriteString("\n")
	}
	if len(seen) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("When pointing a customer to the website, use only the links listed above. ")
	b.WriteString("Do not invent or guess URLs. If no listed page fits, refer them to the primary website.\n")
	return b.String()
}
