package onboard

import (
	"context"

	"github.com/Fusionaimcp4/localboxs/internal/artifacts"
	"github.com/Fusionaimcp4/localboxs/internal/events"
	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/Fusionaimcp4/localboxs/internal/workflow"
)

// TemplateSource provides the system message skeleton.
type TemplateSource interface {
	Load() (string, error)
}

// PageFetcher downloads the business website.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scrape.Page, error)
}

// LinkDiscoverer lists on-site links of the homepage.
type LinkDiscoverer interface {
	Links(ctx context.Context, url string, limit int) ([]scrape.Link, error)
}

// KnowledgeBaseGenerator writes the knowledge base from site text.
type KnowledgeBaseGenerator interface {
	Generate(ctx context.Context, text, sourceURL string) (string, error)
}

// Helpdesk provisions the inbox and bot.
type Helpdesk interface {
	BaseURL() string
	WebhookURL(businessName string) string
	CreateInbox(ctx context.Context, name, websiteURL string) (*helpdesk.Inbox, error)
	DeleteInbox(ctx context.Context, id int64) error
	CreateBot(ctx context.Context, businessName string) (*helpdesk.Bot, error)
	AssignBot(ctx context.Context, inboxID, botID int64) error
	DeleteBot(ctx context.Context, id int64) error
}

// WorkflowCloner clones and patches the workflow template.
type WorkflowCloner interface {
	Clone(ctx context.Context, templateID string, in workflow.PatchInput) (*workflow.CloneResult, error)
	Delete(ctx context.Context, id string) error
}

// ArtifactWriter stores the generated files.
type ArtifactWriter interface {
	WriteSystemMessage(business, content string) (string, artifacts.UndoFunc, error)
	WriteDemoPage(slug, html string) (string, artifacts.UndoFunc, error)
}

// DemoMirror copies registry entries into the dashboard database.
type DemoMirror interface {
	UpsertDemo(ctx context.Context, e registry.Entry) error
}

// EventPublisher announces finished onboardings.
type EventPublisher interface {
	PublishAsync(event events.DemoEvent)
}
