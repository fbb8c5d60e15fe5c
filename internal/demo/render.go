// Package demo renders the branded demo landing page that hosts the
// helpdesk chat widget.
package demo

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
)

const (
	DefaultPrimaryColor   = "#0ea5e9"
	DefaultSecondaryColor = "#38bdf8"
)

//go:embed templates/demo.html
var templatesFS embed.FS

var (
	pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/demo.html"))
	hexColor     = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Page holds the values rendered into the demo page.
type Page struct {
	BusinessName    string
	Slug            string
	PrimaryColor    string
	SecondaryColor  string
	LogoURL         string
	HelpdeskBaseURL string
	WebsiteToken    string
}

type view struct {
	BusinessName    string
	Slug            string
	Primary         template.CSS
	Secondary       template.CSS
	LogoURL         string
	HelpdeskBaseURL string
	WebsiteToken    string
}

// NormalizeColor returns c lowercased when it is a #rgb or #rrggbb color,
// and fallback otherwise.
func NormalizeColor(c, fallback string) string {
	c = strings.TrimSpace(c)
	if !hexColor.MatchString(c) {
		return fallback
	}
	return strings.ToLower(c)
}

// Render produces the demo page. Equal inputs give byte-identical output.
func Render(p Page) (string, error) {
	v := view{
		BusinessName: p.BusinessName,
		Slug:         p.Slug,
		// Only validated hex colors reach the stylesheet.
		Primary:         template.CSS(NormalizeColor(p.PrimaryColor, DefaultPrimaryColor)),
		Secondary:       template.CSS(NormalizeColor(p.SecondaryColor, DefaultSecondaryColor)),
		LogoURL:         strings.TrimSpace(p.LogoURL),
		HelpdeskBaseURL: strings.TrimRight(p.HelpdeskBaseURL, "/"),
		WebsiteToken:    p.WebsiteToken,
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "demo.html", v); err != nil {
		return "", fmt.Errorf("render demo page: %w", err)
	}
	return buf.String(), nil
}
