// Package workflow clones the support workflow template on an n8n-compatible
// automation platform and patches it for one business.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	infractx "github.com/Fusionaimcp4/localboxs/infrastructure/context"
	infraerrors "github.com/Fusionaimcp4/localboxs/infrastructure/errors"
	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/infrastructure/retry"
)

const (
	defaultTimeout = 20 * time.Second
	apiKeyHeader   = "X-N8N-API-KEY"
	workflowsPath  = "/rest/workflows"
)

// APIError is a non-2xx platform answer.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("n8n %s %s %d %s", e.Method, e.Path, e.StatusCode, e.Body))
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Retry applies to reads only.
	Retry retry.Config
}

// Client is an automation platform REST client.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	retry   retry.Config
	log     infralogger.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, log infralogger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = isRetryableRead
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Timeout}),
		retry:   cfg.Retry,
		log:     log,
	}
}

// BaseURL is the platform root, used for production webhook URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func isRetryableRead(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return retry.IsTransient(err)
}

// Get fetches a workflow. Both a bare workflow and {"data": workflow} are
// accepted.
func (c *Client) Get(ctx context.Context, id string) (Graph, error) {
	path := workflowsPath + "/" + id

	var raw json.RawMessage
	err := retry.Retry(ctx, c.retry, func() error {
		return c.do(ctx, http.MethodGet, path, nil, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}

	var envelope struct {
		Data Graph `json:"data"`
	}
	if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Data != nil {
		return envelope.Data, nil
	}
	var g Graph
	if jsonErr := json.Unmarshal(raw, &g); jsonErr != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, jsonErr)
	}
	return g, nil
}

// Create stores g as a new workflow and returns its id.
func (c *Client) Create(ctx context.Context, g Graph) (string, error) {
	var resp struct {
		ID   flexID `json:"id"`
		Data struct {
			ID flexID `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, workflowsPath, g, &resp); err != nil {
		return "", fmt.Errorf("create workflow: %w", err)
	}

	id := string(resp.ID)
	if id == "" {
		id = string(resp.Data.ID)
	}
	if id == "" {
		return "", errors.New("create workflow: response has no id")
	}
	return id, nil
}

// Delete removes a workflow. Deleting a missing workflow succeeds.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, workflowsPath+"/"+id, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete workflow %s: %w", id, err)
	}
	c.log.Info("Deleted workflow", infralogger.String("workflow_id", id))
	return nil
}

// flexID accepts ids sent as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// CloneResult describes a created workflow.
type CloneResult struct {
	WorkflowID string
	Report     PatchReport
}

// Clone fetches templateID, patches it for the business and creates it.
func (c *Client) Clone(ctx context.Context, templateID string, in PatchInput) (*CloneResult, error) {
	if in.WebhookBaseURL == "" {
		in.WebhookBaseURL = c.baseURL
	}

	template, err := c.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	patched, report, err := Patch(template, in)
	if err != nil {
		return nil, fmt.Errorf("patch workflow %s: %w", templateID, err)
	}

	id, err := c.Create(ctx, patched)
	if err != nil {
		return nil, err
	}

	c.log.Info("Cloned workflow template",
		infralogger.String("template_id", templateID),
		infralogger.String("workflow_id", id),
		infralogger.Int("agent_nodes", len(report.AgentNodes)),
		infralogger.Int("webhook_nodes", len(report.WebhookNodes)),
		infralogger.Int("http_nodes", len(report.HTTPNodes)),
	)

	return &CloneResult{WorkflowID: id, Report: report}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := infractx.WithOptionalTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("n8n %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if parseErr := infraerrors.ParseHTTPError(resp); parseErr != nil {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var httpErr *infraerrors.HTTPError
		if errors.As(parseErr, &httpErr) {
			apiErr.Body = httpErr.Body
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("n8n %s %s: decode response: %w", method, path, decodeErr)
	}
	return nil
}
