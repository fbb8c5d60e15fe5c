// Package scrape fetches a business website and reduces it to plain text
// for knowledge base generation.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultMaxBodyBytes = 5 << 20
	defaultMaxRedirects = 5
)

// ErrBodyTooLarge is returned when a page exceeds the configured size.
var ErrBodyTooLarge = errors.New("response body too large")

// FetchError is a non-2xx answer from the target site.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Page is a fetched website.
type Page struct {
	URL      string
	FinalURL string
	HTML     string
	Text     string
	Title    string
	// ThemeColor is the page's theme-color meta value, when it is a hex color.
	ThemeColor string
}

// FetcherConfig configures a Fetcher. Zero values take the package defaults.
type FetcherConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int
	UserAgent    string
}

// Fetcher downloads pages with a bounded timeout, redirect count and size.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	log      infralogger.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, log infralogger.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if log == nil {
		log = infralogger.NewNop()
	}

	return &Fetcher{
		client: infrahttp.NewClient(&infrahttp.ClientConfig{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			UserAgent:    cfg.UserAgent,
		}),
		maxBytes: cfg.MaxBodyBytes,
		log:      log,
	}
}

// Fetch GETs rawURL and returns its HTML and cleaned text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", rawURL, ErrBodyTooLarge, f.maxBytes)
	}

	raw := string(body)
	doc, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	page := &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		HTML:       raw,
		Title:      title(doc),
		ThemeColor: themeColor(doc),
	}
	// cleanDocument mutates doc, so it runs after the metadata reads.
	page.Text = cleanDocument(doc)

	f.log.Debug("Fetched website",
		infralogger.String("url", rawURL),
		infralogger.String("final_url", page.FinalURL),
		infralogger.Int("bytes", len(body)),
		infralogger.Int("text_chars", len(page.Text)),
		infralogger.Duration("duration", time.Since(start)),
	)

	return page, nil
}

// Hostname returns the host of rawURL without a leading "www.".
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
