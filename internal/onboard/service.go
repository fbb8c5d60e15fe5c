// Package onboard runs the demo onboarding pipeline: fetch the business
// website, generate its knowledge base, write the system message, provision
// the helpdesk inbox and bot, clone the workflow, render the demo page and
// record the demo in the registry.
package onboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/demo"
	"github.com/Fusionaimcp4/localboxs/internal/events"
	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/merge"
	"github.com/Fusionaimcp4/localboxs/internal/metrics"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/Fusionaimcp4/localboxs/internal/workflow"
)

const defaultDemoDomain = "localboxs.com"

// Config holds the pipeline settings.
type Config struct {
	DemoDomain string
	// LinkLimit caps the canonical links section; <= 0 skips discovery.
	LinkLimit          int
	TemplateWorkflowID string
	Roles              workflow.Roles
}

// Deps are the collaborators of a Service. Links, Workflows, Mirror,
// Events and Metrics are optional.
type Deps struct {
	Templates TemplateSource
	Fetcher   PageFetcher
	Links     LinkDiscoverer
	KB        KnowledgeBaseGenerator
	Helpdesk  Helpdesk
	Workflows WorkflowCloner
	Artifacts ArtifactWriter
	Registry  registry.Store
	Mirror    DemoMirror
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Logger    infralogger.Logger
}

// Service runs onboardings. Requests for the same slug are serialized.
type Service struct {
	cfg   Config
	deps  Deps
	log   infralogger.Logger
	locks *keyedMutex
	now   func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Templates == nil:
		return nil, errors.New("onboard: template source is required")
	case deps.Fetcher == nil:
		return nil, errors.New("onboard: fetcher is required")
	case deps.KB == nil:
		return nil, errors.New("onboard: knowledge base generator is required")
	case deps.Helpdesk == nil:
		return nil, errors.New("onboard: helpdesk client is required")
	case deps.Artifacts == nil:
		return nil, errors.New("onboard: artifact writer is required")
	case deps.Registry == nil:
		return nil, errors.New("onboard: registry is required")
	}
	if cfg.DemoDomain == "" {
		cfg.DemoDomain = defaultDemoDomain
	}
	log := deps.Logger
	if log == nil {
		log = infralogger.NewNop()
	}

	return &Service{
		cfg:   cfg,
		deps:  deps,
		log:   log,
		locks: newKeyedMutex(),
		now:   time.Now,
	}, nil
}

// DemoURL is the public address of the demo for slug.
func (s *Service) DemoURL(slugValue string) string {
	return fmt.Sprintf("https://%s-demo.%s", slugValue, s.cfg.DemoDomain)
}

// state carries values between steps.
type state struct {
	target   target
	demoURL  string
	skeleton string
	page     *scrape.Page
	links    []scrape.Link
	kb       string
	message  string
	msgPath  string
	inbox    *helpdesk.Inbox
	html     string
	bot      *helpdesk.Bot
	assigned bool
	clone    *workflow.CloneResult
	entry    registry.Entry
}

// Onboard runs the pipeline for req. When a required step fails the side
// effects of earlier steps are undone and the error is returned; StatusFor
// maps it to a response.
func (s *Service) Onboard(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	r := &run{log: s.log, metrics: s.deps.Metrics}
	st := &state{}

	res, err := s.execute(ctx, r, st, req)
	if err != nil {
		r.compensate(ctx)
		status, _ := StatusFor(err)
		s.deps.Metrics.RecordOnboard(status, false, time.Since(start))
		s.log.Error("Onboarding failed",
			infralogger.Slug(st.target.Slug),
			infralogger.String("url", req.BusinessURL),
			infralogger.Int("status", status),
			infralogger.Error(err),
		)
		return nil, err
	}

	s.deps.Metrics.RecordOnboard(http.StatusOK, res.BotSetupSkipped, time.Since(start))
	s.log.Info("Onboarding complete",
		infralogger.Slug(res.Slug),
		infralogger.String("demo_url", res.DemoURL),
		infralogger.Int64("inbox_id", res.Chatwoot.InboxID),
		infralogger.Bool("bot_setup_skipped", res.BotSetupSkipped),
		infralogger.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *Service) execute(ctx context.Context, r *run, st *state, req Request) (*Result, error) {
	// The skeleton is read before anything touches the network.
	if err := r.do(ctx, StepLoadTemplate, Required, func(context.Context) error {
		skeleton, err := s.deps.Templates.Load()
		st.skeleton = skeleton
		return err
	}); err != nil {
		return nil, err
	}

	if err := r.do(ctx, StepValidate, Required, func(context.Context) error {
		t, err := validate(req)
		st.target = t
		return err
	}); err != nil {
		return nil, err
	}
	st.demoURL = s.DemoURL(st.target.Slug)
	r.log = s.log.With(infralogger.Slug(st.target.Slug))

	unlock := s.locks.Lock(st.target.Slug)
	defer unlock()

	if err := s.gatherContent(ctx, r, st); err != nil {
		return nil, err
	}
	if err := s.publishDemo(ctx, r, st, req); err != nil {
		return nil, err
	}

	res := &Result{}
	s.setupAutomation(ctx, r, st, res)

	if err := s.record(ctx, r, st); err != nil {
		return nil, err
	}

	_ = r.do(ctx, StepRespond, Required, func(context.Context) error {
		s.fillResult(res, st)
		s.announce(st, res)
		return nil
	})
	res.Steps = r.steps
	return res, nil
}

// gatherContent fetches the site and builds the system message.
func (s *Service) gatherContent(ctx context.Context, r *run, st *state) error {
	if err := r.do(ctx, StepFetch, Required, func(ctx context.Context) error {
		page, err := s.deps.Fetcher.Fetch(ctx, st.target.URL)
		st.page = page
		return err
	}); err != nil {
		return err
	}

	if s.deps.Links == nil || s.cfg.LinkLimit <= 0 {
		r.skip(StepDiscoverLinks, BestEffort, "link discovery disabled")
	} else {
		_ = r.do(ctx, StepDiscoverLinks, BestEffort, func(ctx context.Context) error {
			links, err := s.deps.Links.Links(ctx, st.target.URL, s.cfg.LinkLimit)
			st.links = links
			return err
		})
	}

	if err := r.do(ctx, StepGenerateKB, Required, func(ctx context.Context) error {
		kb, err := s.deps.KB.Generate(ctx, st.page.Text, st.target.URL)
		st.kb = kb
		return err
	}); err != nil {
		return err
	}

	return r.do(ctx, StepMerge, Required, func(context.Context) error {
		msg, err := merge.Merge(st.skeleton, st.kb)
		if err != nil {
			return err
		}
		if len(st.links) > 0 {
			msg = merge.InjectLinks(msg, st.target.URL, toMergeLinks(st.links))
		}
		st.message = msg
		return nil
	})
}

// publishDemo writes the system message, creates the inbox and writes the
// demo page.
func (s *Service) publishDemo(ctx context.Context, r *run, st *state, req Request) error {
	if err := r.do(ctx, StepWriteSystemMsg, Required, func(context.Context) error {
		path, undo, err := s.deps.Artifacts.WriteSystemMessage(st.target.Business, st.message)
		if err != nil {
			return err
		}
		st.msgPath = path
		r.onFailure(StepWriteSystemMsg, func(context.Context) error { return undo() })
		return nil
	}); err != nil {
		return err
	}

	if err := r.do(ctx, StepProvisionInbox, Required, func(ctx context.Context) error {
		inbox, err := s.deps.Helpdesk.CreateInbox(ctx, st.target.Business+" Demo", st.demoURL)
		if err != nil {
			return err
		}
		st.inbox = inbox
		r.onFailure(StepProvisionInbox, func(ctx context.Context) error {
			return s.deps.Helpdesk.DeleteInbox(ctx, inbox.ID)
		})
		return nil
	}); err != nil {
		return err
	}

	if err := r.do(ctx, StepRenderDemo, Required, func(context.Context) error {
		html, err := demo.Render(demo.Page{
			BusinessName:    st.target.Business,
			Slug:            st.target.Slug,
			PrimaryColor:    req.PrimaryColor,
			SecondaryColor:  req.SecondaryColor,
			LogoURL:         req.LogoURL,
			HelpdeskBaseURL: s.deps.Helpdesk.BaseURL(),
			WebsiteToken:    st.inbox.WebsiteToken,
		})
		st.html = html
		return err
	}); err != nil {
		return err
	}

	return r.do(ctx, StepWriteDemoPage, Required, func(context.Context) error {
		_, undo, err := s.deps.Artifacts.WriteDemoPage(st.target.Slug, st.html)
		if err != nil {
			return err
		}
		r.onFailure(StepWriteDemoPage, func(context.Context) error { return undo() })
		return nil
	})
}

// setupAutomation creates and assigns the bot and clones the workflow.
// Failures degrade res instead of aborting.
func (s *Service) setupAutomation(ctx context.Context, r *run, st *state, res *Result) {
	var botErr error
	_ = r.do(ctx, StepProvisionBot, BestEffort, func(ctx context.Context) error {
		bot, err := s.deps.Helpdesk.CreateBot(ctx, st.target.Business)
		if err != nil {
			botErr = err
			return err
		}
		st.bot = bot
		r.onFailure(StepProvisionBot, func(ctx context.Context) error {
			return s.deps.Helpdesk.DeleteBot(ctx, bot.ID)
		})
		if assignErr := s.deps.Helpdesk.AssignBot(ctx, st.inbox.ID, bot.ID); assignErr != nil {
			botErr = assignErr
			return assignErr
		}
		st.assigned = true
		return nil
	})

	if botErr != nil {
		r.skip(StepProvisionWorkflow, BestEffort, "bot setup failed")
		res.BotSetupSkipped = true
		res.Reason, res.SuggestedSteps = s.botSkipAdvice(st, botErr)
		return
	}

	if s.deps.Workflows == nil || s.cfg.TemplateWorkflowID == "" {
		r.skip(StepProvisionWorkflow, BestEffort, "workflow platform not configured")
		return
	}

	_ = r.do(ctx, StepProvisionWorkflow, BestEffort, func(ctx context.Context) error {
		clone, err := s.deps.Workflows.Clone(ctx, s.cfg.TemplateWorkflowID, workflow.PatchInput{
			BusinessName:  st.target.Business,
			SystemMessage: st.message,
			BotToken:      st.bot.AccessToken,
			HelpdeskHost:  hostOf(s.deps.Helpdesk.BaseURL()),
			Roles:         s.cfg.Roles,
		})
		if err != nil {
			res.BotSetupSkipped = true
			res.Reason = "Workflow clone failed: " + err.Error()
			res.SuggestedSteps = []string{
				"Duplicate the template workflow in n8n manually",
				"Paste the system message from " + st.msgPath + " into the AI agent node",
				"Set the webhook path to " + st.target.Business,
				"Add the bot access token to the Chatwoot HTTP nodes",
			}
			return err
		}
		st.clone = clone
		r.onFailure(StepProvisionWorkflow, func(ctx context.Context) error {
			return s.deps.Workflows.Delete(ctx, clone.WorkflowID)
		})
		return nil
	})
}

func (s *Service) botSkipAdvice(st *state, err error) (string, []string) {
	webhook := s.deps.Helpdesk.WebhookURL(st.target.Business)
	inboxName := st.target.Business + " Demo"

	if errors.Is(err, helpdesk.ErrBotAPIUnavailable) {
		return "Chatwoot Agent Bot API is not available on this installation", []string{
			"Create an Agent Bot in Chatwoot under Settings > Bots",
			"Set its webhook URL to " + webhook,
			"Assign the bot to the inbox " + inboxName,
			"Clone the n8n template workflow and paste the system message from " + st.msgPath,
		}
	}

	if st.bot != nil {
		return "Agent bot created but assignment to the inbox failed: " + err.Error(), []string{
			fmt.Sprintf("Assign the bot %q to the inbox %s in Chatwoot", st.bot.Name, inboxName),
			"Clone the n8n template workflow and paste the system message from " + st.msgPath,
		}
	}

	return "Agent bot creation failed: " + err.Error(), []string{
		"Check the Chatwoot API key permissions for agent bots",
		"Create an Agent Bot with webhook URL " + webhook + " and assign it to " + inboxName,
	}
}

// record upserts the registry entry and mirrors it to the database.
func (s *Service) record(ctx context.Context, r *run, st *state) error {
	entry := registry.Entry{
		Slug:              st.target.Slug,
		Business:          st.target.Business,
		URL:               st.target.URL,
		SystemMessageFile: st.msgPath,
		DemoURL:           st.demoURL,
		Chatwoot: registry.Chatwoot{
			InboxID:      st.inbox.ID,
			WebsiteToken: st.inbox.WebsiteToken,
		},
	}
	if st.bot != nil {
		entry.AgentBot = &registry.AgentBot{ID: st.bot.ID, AccessToken: st.bot.AccessToken}
	}
	if st.clone != nil {
		entry.WorkflowID = st.clone.WorkflowID
	}

	if err := r.do(ctx, StepUpdateRegistry, Required, func(ctx context.Context) error {
		stored, err := s.deps.Registry.Upsert(ctx, entry)
		st.entry = stored
		return err
	}); err != nil {
		return err
	}

	if s.deps.Mirror == nil {
		r.skip(StepMirrorDatabase, BestEffort, "database disabled")
		return nil
	}
	_ = r.do(ctx, StepMirrorDatabase, BestEffort, func(ctx context.Context) error {
		return s.deps.Mirror.UpsertDemo(ctx, st.entry)
	})
	return nil
}

func (s *Service) fillResult(res *Result, st *state) {
	e := st.entry
	res.Slug = e.Slug
	res.Business = e.Business
	res.URL = e.URL
	res.SystemMessageFile = e.SystemMessageFile
	res.DemoURL = e.DemoURL
	res.Chatwoot = e.Chatwoot
	res.WorkflowID = e.WorkflowID
	res.AgentBot = e.AgentBot
	res.CreatedAt = e.CreatedAt
	res.UpdatedAt = e.UpdatedAt

	if st.assigned && st.clone != nil && !res.BotSetupSkipped {
		res.Notes = &Notes{
			ChatwootBot:   fmt.Sprintf("Agent bot %q (id %d) assigned to inbox %d", st.bot.Name, st.bot.ID, st.inbox.ID),
			N8NWebhook:    s.deps.Helpdesk.WebhookURL(st.target.Business),
			HTTPNodesAuth: fmt.Sprintf("Bot access token set on %d Chatwoot HTTP node(s)", len(st.clone.Report.HTTPNodes)),
		}
	}
}

func (s *Service) announce(st *state, res *Result) {
	if s.deps.Events == nil {
		return
	}
	eventType := events.DemoCreated
	if st.entry.UpdatedAt != nil {
		eventType = events.DemoUpdated
	}
	s.deps.Events.PublishAsync(events.DemoEvent{
		EventType: eventType,
		Slug:      st.entry.Slug,
		Timestamp: s.now().UTC(),
		Payload: events.OnboardedPayload{
			Business:        st.entry.Business,
			URL:             st.entry.URL,
			DemoURL:         st.entry.DemoURL,
			InboxID:         st.entry.Chatwoot.InboxID,
			WorkflowID:      st.entry.WorkflowID,
			BotSetupSkipped: res.BotSetupSkipped,
		},
	})
}

func toMergeLinks(links []scrape.Link) []merge.Link {
	out := make([]merge.Link, 0, len(links))
	for _, l := range links {
		out = append(out, merge.Link{Title: l.Title, URL: l.URL})
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
