// Package http builds the outbound HTTP clients used for scraping and for
// the helpdesk, workflow and LLM APIs.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultMaxRedirects        = 10
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// ClientConfig configures NewClient. Zero values take the defaults above.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration

	// MaxRedirects caps followed redirects. Negative disables following.
	MaxRedirects int

	// UserAgent, when set, is added to requests that do not carry one.
	UserAgent string
}

// NewClient returns an *http.Client with its own transport.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = orDefault(cfg.MaxIdleConns, DefaultMaxIdleConns)
	transport.MaxIdleConnsPerHost = orDefault(cfg.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost)
	transport.IdleConnTimeout = orDefault(cfg.IdleConnTimeout, DefaultIdleConnTimeout)
	transport.TLSHandshakeTimeout = orDefault(cfg.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout)

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Timeout:       orDefault(cfg.Timeout, DefaultTimeout),
		Transport:     rt,
		CheckRedirect: RedirectPolicy(cfg.MaxRedirects),
	}
}

// RedirectPolicy follows at most maxHops redirects (DefaultMaxRedirects when
// zero). A negative maxHops returns the first redirect response as-is.
func RedirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	if maxHops == 0 {
		maxHops = DefaultMaxRedirects
	}
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > maxHops {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxHops)
		}
		return nil
	}
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(clone)
}

func orDefault[T int | time.Duration](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}
