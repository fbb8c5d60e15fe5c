package scrape

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const strippedElements = "script, style, noscript, template"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func parse(raw string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}

// Clean strips scripts, styles and markup from raw HTML and collapses
// whitespace. Unparseable input yields "".
func Clean(raw string) string {
	doc, err := parse(raw)
	if err != nil {
		return ""
	}
	return cleanDocument(doc)
}

func cleanDocument(doc *goquery.Document) string {
	doc.Find(strippedElements).Remove()

	var parts []string
	for _, n := range doc.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// collectText appends text nodes in document order.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		*parts = append(*parts, n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find("meta[property='og:site_name']").Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

func themeColor(doc *goquery.Document) string {
	c, ok := doc.Find("meta[name='theme-color']").Attr("content")
	if !ok {
		return ""
	}
	c = strings.TrimSpace(c)
	if !hexColor.MatchString(c) {
		return ""
	}
	return strings.ToLower(c)
}
