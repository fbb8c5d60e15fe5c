package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/infrastructure/retry"
	"github.com/Fusionaimcp4/localboxs/internal/artifacts"
	"github.com/Fusionaimcp4/localboxs/internal/config"
	"github.com/Fusionaimcp4/localboxs/internal/events"
	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/kb"
	"github.com/Fusionaimcp4/localboxs/internal/merge"
	"github.com/Fusionaimcp4/localboxs/internal/metrics"
	"github.com/Fusionaimcp4/localboxs/internal/onboard"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
	"github.com/Fusionaimcp4/localboxs/internal/repository"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/Fusionaimcp4/localboxs/internal/workflow"
)

// Services holds the long-lived collaborators shared by the HTTP layer
// and the reconciler.
type Services struct {
	Onboard   *onboard.Service
	Fetcher   *scrape.Fetcher
	Helpdesk  *helpdesk.Client
	Templates *merge.TemplateStore
	Artifacts *artifacts.Writer
	Registry  registry.Store
	Metrics   *metrics.Metrics
}

// SetupServices builds the onboarding pipeline. db and publisher may be nil.
func SetupServices(
	ctx context.Context,
	cfg *config.Config,
	db *sqlx.DB,
	reg registry.Store,
	publisher *events.Publisher,
	log infralogger.Logger,
) (*Services, error) {
	fetchCfg := scrape.FetcherConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UserAgent:    cfg.Fetch.UserAgent,
	}

	helpdeskClient, err := helpdesk.NewClient(helpdesk.Config{
		BaseURL:        cfg.Chatwoot.BaseURL,
		AccountID:      cfg.Chatwoot.AccountID,
		APIKey:         cfg.Chatwoot.APIKey,
		Timeout:        cfg.Chatwoot.Timeout,
		WebhookBaseURL: cfg.N8N.BaseURL,
		AssignAttempts: cfg.Chatwoot.AssignAttempts,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("helpdesk client: %w", err)
	}

	roles, err := workflow.RolesFromMap(cfg.N8N.Roles)
	if err != nil {
		return nil, err
	}

	templates := merge.NewTemplateStore(cfg.Paths.SkeletonPath, log)
	if cfg.Paths.WatchSkeleton {
		if watchErr := templates.Watch(ctx); watchErr != nil {
			log.Warn("Skeleton hot reload disabled", infralogger.Error(watchErr))
		}
	}

	s := &Services{
		Fetcher:   scrape.NewFetcher(fetchCfg, log),
		Helpdesk:  helpdeskClient,
		Templates: templates,
		Artifacts: artifacts.NewWriter(cfg.Paths.SystemMessagesRoot, cfg.Paths.DemoRoot),
		Registry:  reg,
		Metrics:   metrics.New(),
	}

	deps := onboard.Deps{
		Templates: templates,
		Fetcher:   s.Fetcher,
		Links:     scrape.NewDiscoverer(fetchCfg, log),
		KB: kb.NewGenerator(kb.Config{
			APIKey:        cfg.LLM.APIKey,
			BaseURL:       cfg.LLM.BaseURL,
			Model:         cfg.LLM.Model,
			MaxTokens:     cfg.LLM.MaxTokens,
			MaxInputChars: cfg.LLM.MaxInputChars,
			Timeout:       cfg.LLM.Timeout,
		}, log),
		Helpdesk:  helpdeskClient,
		Artifacts: s.Artifacts,
		Registry:  reg,
		Metrics:   s.Metrics,
		Logger:    log,
	}
	// Optional collaborators stay nil interfaces when absent.
	if cfg.N8N.Enabled() {
		deps.Workflows = workflow.NewClient(workflow.Config{
			BaseURL: cfg.N8N.BaseURL,
			APIKey:  cfg.N8N.APIKey,
			Timeout: cfg.N8N.Timeout,
			Retry:   retry.DefaultConfig(),
		}, log)
	} else {
		log.Warn("Workflow platform not configured, workflow cloning is skipped")
	}
	if db != nil {
		deps.Mirror = repository.NewDemoRepository(db, log)
	}
	if publisher != nil {
		deps.Events = publisher
	}

	s.Onboard, err = onboard.NewService(onboard.Config{
		DemoDomain:         cfg.Demo.Domain,
		LinkLimit:          cfg.Fetch.LinkLimit,
		TemplateWorkflowID: cfg.N8N.TemplateWorkflowID,
		Roles:              roles,
	}, deps)
	if err != nil {
		return nil, err
	}
	return s, nil
}
