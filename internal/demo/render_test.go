package demo_test

import (
	"testing"

	"github.com/Fusionaimcp4/localboxs/internal/demo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePage() demo.Page {
	return demo.Page{
		BusinessName:    "Test Company",
		Slug:            "test-company",
		PrimaryColor:    "#FF0000",
		SecondaryColor:  "#00ff00",
		LogoURL:         "https://example.com/logo.png",
		HelpdeskBaseURL: "https://chat.example.com/",
		WebsiteToken:    "test-token-123",
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	html, err := demo.Render(samplePage())
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Test Company</h1>")
	assert.Contains(t, html, `src="https://example.com/logo.png"`)
	assert.Contains(t, html, "--primary: #ff0000;")
	assert.Contains(t, html, "--secondary: #00ff00;")
	assert.Contains(t, html, "test-token-123")
	assert.Contains(t, html, "chat.example.com")
	assert.Contains(t, html, `data-demo="test-company"`)
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := demo.Render(samplePage())
	require.NoError(t, err)
	second, err := demo.Render(samplePage())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_DefaultsAndEscaping(t *testing.T) {
	t.Parallel()

	p := samplePage()
	p.BusinessName = `<script>alert("x")</script>`
	p.PrimaryColor = "red; background: url(evil)"
	p.SecondaryColor = ""
	p.LogoURL = ""

	html, err := demo.Render(p)
	require.NoError(t, err)

	assert.Contains(t, html, "--primary: "+demo.DefaultPrimaryColor+";")
	assert.Contains(t, html, "--secondary: "+demo.DefaultSecondaryColor+";")
	assert.NotContains(t, html, `<script>alert("x")</script>`)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, `class="logo"`)
}

func TestNormalizeColor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#abc", demo.NormalizeColor(" #ABC ", "x"))
	assert.Equal(t, "x", demo.NormalizeColor("#abcd", "x"))
	assert.Equal(t, "x", demo.NormalizeColor("blue", "x"))
}
