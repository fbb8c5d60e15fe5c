package scrape_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title> Acme Plumbing </title>
  <meta name="theme-color" content="#FF6600">
  <style>body { color: red; }</style>
  <script>var tracking = "secret";</script>
</head>
<body>
  <h1>Welcome</h1>
  <p>We fix   pipes.</p><p>Call us</p>
  <noscript>Enable JS</noscript>
  <a href="/pricing">Pricing</a>
  <a href="/contact#form"> Contact
     us </a>
  <a href="https://www.acme.test/about" title="About Acme"></a>
  <a href="/pricing">Pricing duplicate</a>
  <a href="https://other.test/page">Elsewhere</a>
  <a href="mailto:hi@acme.test">Mail</a>
  <a href="#top">Top</a>
</body>
</html>`

func TestClean(t *testing.T) {
	t.Parallel()

	got := scrape.Clean(samplePage)

	assert.NotContains(t, got, "tracking")
	assert.NotContains(t, got, "color: red")
	assert.NotContains(t, got, "Enable JS")
	assert.NotContains(t, got, "<")
	assert.Contains(t, got, "Acme Plumbing Welcome We fix pipes. Call us")
	assert.Equal(t, strings.Join(strings.Fields(got), " "), got)
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/", http.StatusMovedPermanently)
		case "/":
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, samplePage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := scrape.NewFetcher(scrape.FetcherConfig{UserAgent: "test-agent"}, nil)

	page, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, srv.URL+"/", page.FinalURL)
	assert.Equal(t, "Acme Plumbing", page.Title)
	assert.Equal(t, "#ff6600", page.ThemeColor)
	assert.Contains(t, page.HTML, "<script>")
	assert.Contains(t, page.Text, "We fix pipes.")
	assert.NotContains(t, page.Text, "tracking")
}

func TestFetcher_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := scrape.NewFetcher(scrape.FetcherConfig{}, nil).Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	var fetchErr *scrape.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, fmt.Sprintf("Failed to fetch %s/missing: 404 Not Found", srv.URL), err.Error())
	assert.Equal(t, scrape.KindNotAccessible, scrape.Classify(err))
}

func TestFetcher_BodyTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	}))
	t.Cleanup(srv.Close)

	_, err := scrape.NewFetcher(scrape.FetcherConfig{MaxBodyBytes: 1024}, nil).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, scrape.ErrBodyTooLarge)
}

func TestFetcher_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := scrape.NewFetcher(scrape.FetcherConfig{Timeout: 50 * time.Millisecond}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, scrape.KindTimeout, scrape.Classify(err))
}

func TestFetcher_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := scrape.NewFetcher(scrape.FetcherConfig{}, nil).Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, scrape.KindNotAccessible, scrape.Classify(err))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, scrape.KindTimeout, scrape.Classify(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
	assert.Equal(t, scrape.KindTLS, scrape.Classify(errors.New("tls: failed to verify certificate")))
	assert.Equal(t, scrape.KindOther, scrape.Classify(errors.New("boom")))
	assert.Equal(t, scrape.KindOther, scrape.Classify(nil))
}

func TestHostname(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", scrape.Hostname("https://www.example.com/path"))
	assert.Equal(t, "shop.example.com", scrape.Hostname("http://shop.example.com"))
}

func TestDiscoverer_Links(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, strings.ReplaceAll(samplePage, "https://www.acme.test", ""))
	}))
	t.Cleanup(srv.Close)

	d := scrape.NewDiscoverer(scrape.FetcherConfig{Timeout: time.Second}, nil)

	links, err := d.Links(context.Background(), srv.URL, 10)
	require.NoError(t, err)

	require.Len(t, links, 3)
	assert.Equal(t, scrape.Link{Title: "Pricing", URL: srv.URL + "/pricing"}, links[0])
	assert.Equal(t, scrape.Link{Title: "Contact us", URL: srv.URL + "/contact"}, links[1])
	assert.Equal(t, scrape.Link{Title: "About Acme", URL: srv.URL + "/about"}, links[2])

	limited, err := d.Links(context.Background(), srv.URL, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := d.Links(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
