// Package helpdesk provisions website inboxes and agent bots on a
// Chatwoot-compatible helpdesk.
package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Fusionaimcp4/localboxs/infrastructure/circuitbreaker"
	infractx "github.com/Fusionaimcp4/localboxs/infrastructure/context"
	infraerrors "github.com/Fusionaimcp4/localboxs/infrastructure/errors"
	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultWidgetColor = "#0ea5e9"
	apiKeyHeader       = "api_access_token"
)

var (
	// ErrBotAPIUnavailable means the installation has no agent bot API.
	ErrBotAPIUnavailable = errors.New("agent bot API not available")
	// ErrInboxNotFound is returned by GetInbox for a deleted inbox.
	ErrInboxNotFound = errors.New("inbox not found")
)

// Error is a failed helpdesk operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chatwoot %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Inbox is a website channel inbox.
type Inbox struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	WebsiteToken string `json:"website_token"`
}

// Bot is an agent bot.
type Bot struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	AccountID string
	APIKey    string
	Timeout   time.Duration
	// WebhookBaseURL is the workflow platform root used for bot outgoing URLs.
	WebhookBaseURL string
	WidgetColor    string
	// AssignAttempts selects and orders the bot assignment shapes by name.
	AssignAttempts []string
	Breaker        circuitbreaker.Config
}

// Client talks to one helpdesk account. It is safe for concurrent use.
type Client struct {
	baseURL     string
	accountID   string
	apiKey      string
	webhookBase string
	widgetColor string
	timeout     time.Duration
	http        *http.Client
	breaker     *circuitbreaker.Breaker
	attempts    []AssignAttempt
	log         infralogger.Logger

	mu        sync.Mutex
	preferred string
}

// NewClient creates a Client. Unknown attempt names are an error.
func NewClient(cfg Config, log infralogger.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.WidgetColor == "" {
		cfg.WidgetColor = defaultWidgetColor
	}
	if log == nil {
		log = infralogger.NewNop()
	}

	attempts, err := selectAttempts(cfg.AssignAttempts)
	if err != nil {
		return nil, err
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.IsFailure == nil {
		breakerCfg.IsFailure = isUpstreamFailure
	}
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Helpdesk circuit breaker state changed",
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accountID:   cfg.AccountID,
		apiKey:      cfg.APIKey,
		webhookBase: strings.TrimRight(cfg.WebhookBaseURL, "/"),
		widgetColor: cfg.WidgetColor,
		timeout:     cfg.Timeout,
		http:        infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Timeout}),
		breaker:     circuitbreaker.New(breakerCfg),
		attempts:    attempts,
		log:         log,
	}, nil
}

// BaseURL is the helpdesk root, used by the demo page widget script.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// isUpstreamFailure counts transport errors and 5xx answers against the
// breaker. Client errors mean the helpdesk is up.
func isUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if code, ok := infraerrors.StatusCode(err); ok {
		return code >= http.StatusInternalServerError
	}
	return true
}

func (c *Client) accountPath(format string, args ...any) string {
	return fmt.Sprintf("/api/v1/accounts/%s", c.accountID) + fmt.Sprintf(format, args...)
}

// do sends one JSON request through the circuit breaker and decodes a 2xx
// answer into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := infractx.WithOptionalTimeout(ctx, c.timeout)
	defer cancel()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	return c.breaker.Execute(func() error {
		var reader io.Reader = http.NoBody
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, httpErr)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, decodeErr)
		}
		return nil
	})
}
