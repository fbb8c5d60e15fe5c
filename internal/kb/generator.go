// Package kb turns cleaned website text into a Markdown knowledge base
// using the Anthropic Messages API.
package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	infractx "github.com/Fusionaimcp4/localboxs/infrastructure/context"
	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

const (
	defaultModel         = "claude-sonnet-4-5"
	defaultMaxTokens     = 4096
	defaultMaxInputChars = 60000
	defaultTimeout       = 90 * time.Second
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty knowledge base")

const systemPrompt = `You write knowledge bases for customer support assistants.
From the website text you are given, produce a structured Markdown knowledge base about the business.
Use only facts present in the text. Do not invent prices, hours, addresses or policies.
Start directly with the content, without a top-level title and without a "Knowledge Base" heading.
Use "###" headings for sections, for example:
### Business Overview
### Products and Services
### Pricing
### Hours and Locations
### Contact Information
### Policies
### Frequently Asked Questions
Omit sections the text gives no information for. Prefer short bullet points.`

// Config configures a Generator. Zero values take the package defaults.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int64
	MaxInputChars int
	Timeout       time.Duration
}

// Generator produces knowledge bases. It makes exactly one request per
// Generate call: retries are disabled.
type Generator struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	maxInputChars int
	timeout       time.Duration
	log           infralogger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config, log infralogger.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = infralogger.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Timeout})),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Generator{
		client:        anthropic.NewClient(opts...),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxInputChars: cfg.MaxInputChars,
		timeout:       cfg.Timeout,
		log:           log,
	}
}

// Generate asks the model for a knowledge base describing the site at
// sourceURL. Provider errors are returned wrapped.
func (g *Generator) Generate(ctx context.Context, cleanedText, sourceURL string) (string, error) {
	ctx, cancel := infractx.WithOptionalTimeout(ctx, g.timeout)
	defer cancel()

	text, truncated := Truncate(cleanedText, g.maxInputChars)
	if truncated {
		g.log.Debug("Truncated website text for generation",
			infralogger.String("url", sourceURL),
			infralogger.Int("original_chars", utf8.RuneCountInString(cleanedText)),
			infralogger.Int("max_chars", g.maxInputChars),
		)
	}

	start := time.Now()
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(sourceURL, text))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate knowledge base: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}

	g.log.Info("Generated knowledge base",
		infralogger.String("url", sourceURL),
		infralogger.String("model", g.model),
		infralogger.Int64("input_tokens", msg.Usage.InputTokens),
		infralogger.Int64("output_tokens", msg.Usage.OutputTokens),
		infralogger.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func userPrompt(sourceURL, text string) string {
	return fmt.Sprintf("Website: %s\n\nWebsite text:\n%s", sourceURL, text)
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
