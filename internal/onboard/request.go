package onboard

import (
	"net/url"
	"strings"
	"time"

	"github.com/Fusionaimcp4/localboxs/internal/registry"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/Fusionaimcp4/localboxs/internal/slug"
)

// Request is the POST /onboard body.
type Request struct {
	BusinessURL    string `json:"business_url"`
	BusinessName   string `json:"business_name,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
}

// Notes describe the bot and workflow wiring after a full success.
type Notes struct {
	ChatwootBot   string `json:"chatwoot_bot"`
	N8NWebhook    string `json:"n8n_webhook"`
	HTTPNodesAuth string `json:"http_nodes_auth"`
}

// Result is the onboarding response.
type Result struct {
	Slug              string             `json:"slug"`
	Business          string             `json:"business"`
	URL               string             `json:"url"`
	SystemMessageFile string             `json:"system_message_file"`
	DemoURL           string             `json:"demo_url"`
	Chatwoot          registry.Chatwoot  `json:"chatwoot"`
	WorkflowID        string             `json:"workflow_id,omitempty"`
	AgentBot          *registry.AgentBot `json:"agent_bot,omitempty"`
	BotSetupSkipped   bool               `json:"bot_setup_skipped,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	SuggestedSteps    []string           `json:"suggested_steps,omitempty"`
	Notes             *Notes             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         *time.Time         `json:"updated_at,omitempty"`
	Steps             []StepReport       `json:"steps"`
}

// target is a validated request.
type target struct {
	URL      string
	Business string
	Slug     string
}

// validate checks the URL and derives the business name and slug. The name
// defaults to the hostname without "www.".
func validate(req Request) (target, error) {
	raw := strings.TrimSpace(req.BusinessURL)
	if raw == "" {
		return target{}, &ValidationError{Message: "business_url is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return target{}, &ValidationError{Message: "Invalid business_url format"}
	}

	business := strings.TrimSpace(req.BusinessName)
	if business == "" {
		business = scrape.Hostname(raw)
	}

	s, err := slug.Make(business)
	if err != nil {
		return target{}, &ValidationError{Message: "Could not generate valid slug from business name"}
	}

	return target{URL: raw, Business: business, Slug: s}, nil
}
