package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	colly "github.com/gocolly/colly/v2"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

// Link is an on-site page found on the business homepage.
type Link struct {
	Title string
	URL   string
}

var skipPrefixes = []string{"#", "javascript:", "mailto:", "tel:", "data:"}

// Discoverer collects same-host links from a page.
type Discoverer struct {
	cfg FetcherConfig
	log infralogger.Logger
}

// NewDiscoverer creates a Discoverer sharing the fetch limits.
func NewDiscoverer(cfg FetcherConfig, log infralogger.Logger) *Discoverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Discoverer{cfg: cfg, log: log}
}

// Links visits pageURL once and returns up to limit distinct same-host
// links in page order. Links are never followed.
func (d *Discoverer) Links(ctx context.Context, pageURL string, limit int) ([]Link, error) {
	if limit <= 0 {
		return nil, nil
	}

	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", pageURL)
	}
	host := strings.TrimPrefix(base.Hostname(), "www.")

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(int(d.cfg.MaxBodyBytes)),
	}
	if d.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(d.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(d.cfg.Timeout)

	var (
		mu    sync.Mutex
		links []Link
		seen  = map[string]struct{}{}
	)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" || hasSkipPrefix(href) {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		u, parseErr := url.Parse(abs)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if strings.TrimPrefix(u.Hostname(), "www.") != host {
			return
		}
		u.Fragment = ""
		canonical := u.String()

		mu.Lock()
		defer mu.Unlock()
		if len(links) >= limit {
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}

		text := strings.Join(strings.Fields(e.Text), " ")
		if text == "" {
			text = strings.TrimSpace(e.Attr("title"))
		}
		if text == "" {
			text = strings.TrimSpace(e.ChildAttr("img", "alt"))
		}
		links = append(links, Link{Title: text, URL: canonical})
	})

	start := time.Now()
	if visitErr := c.Visit(pageURL); visitErr != nil {
		return nil, fmt.Errorf("discover links on %s: %w", pageURL, visitErr)
	}
	c.Wait()

	d.log.Debug("Discovered website links",
		infralogger.String("url", pageURL),
		infralogger.Int("count", len(links)),
		infralogger.Duration("duration", time.Since(start)),
	)

	return links, nil
}

func hasSkipPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skipPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
