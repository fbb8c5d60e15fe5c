package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
)

const (
	summaryLength         = 200
	defaultPrimaryColor   = "#0ea5e9"
	defaultSecondaryColor = "#38bdf8"
)

// PageFetcher downloads a website.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scrape.Page, error)
}

// InspectResult is the prefill data for the onboarding form.
type InspectResult struct {
	URL            string `json:"url"`
	Name           string `json:"name"`
	Summary        string `json:"summary"`
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
}

type InspectHandler struct {
	fetcher PageFetcher
	logger  infralogger.Logger
}

func NewInspectHandler(fetcher PageFetcher, log infralogger.Logger) *InspectHandler {
	return &InspectHandler{
		fetcher: fetcher,
		logger:  log,
	}
}

// Inspect fetches ?url= and suggests a business name, summary and colors.
func (h *InspectHandler) Inspect(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL format"})
		return
	}

	page, err := h.fetcher.Fetch(c.Request.Context(), raw)
	if err != nil {
		status, msg := inspectError(err)
		h.logger.Warn("Website inspection failed",
			infralogger.String("url", raw),
			infralogger.String("kind", scrape.Classify(err).String()),
			infralogger.Error(err),
		)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	primary := page.ThemeColor
	if primary == "" {
		primary = defaultPrimaryColor
	}

	c.JSON(http.StatusOK, InspectResult{
		URL:            raw,
		Name:           strings.TrimPrefix(u.Hostname(), "www."),
		Summary:        summarize(page.Text),
		PrimaryColor:   primary,
		SecondaryColor: defaultSecondaryColor,
	})
}

func inspectError(err error) (int, string) {
	switch scrape.Classify(err) {
	case scrape.KindNotAccessible:
		return http.StatusBadRequest, "Website not accessible: " + err.Error()
	case scrape.KindTLS:
		return http.StatusBadRequest, "SSL certificate error: " + err.Error()
	case scrape.KindTimeout:
		return http.StatusRequestTimeout, "Website took too long to respond"
	default:
		return http.StatusBadRequest, "Failed to inspect website: " + err.Error()
	}
}

func summarize(text string) string {
	r := []rune(text)
	if len(r) <= summaryLength {
		return text
	}
	return string(r[:summaryLength]) + "..."
}
