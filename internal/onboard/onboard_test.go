package onboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fusionaimcp4/localboxs/internal/artifacts"
	"github.com/Fusionaimcp4/localboxs/internal/events"
	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/merge"
	"github.com/Fusionaimcp4/localboxs/internal/onboard"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
	"github.com/Fusionaimcp4/localboxs/internal/scrape"
	"github.com/Fusionaimcp4/localboxs/internal/workflow"
)

const skeleton = "# Assistant\n\n## Role\nHelp customers.\n\n## Knowledge Base\nTBD\n\n## Tone\nFriendly.\n"

type fakeKB struct {
	kb  string
	err error
}

func (f *fakeKB) Generate(_ context.Context, text, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.kb != "" {
		return f.kb, nil
	}
	return "### Business Overview\n" + text, nil
}

type fakeHelpdesk struct {
	mu          sync.Mutex
	nextInbox   int64
	inboxes     map[int64]string
	createErr   error
	botErr      error
	assignErr   error
	botsCreated int
	botsDeleted []int64
}

func newFakeHelpdesk() *fakeHelpdesk {
	return &fakeHelpdesk{nextInbox: 100, inboxes: map[int64]string{}}
}

func (f *fakeHelpdesk) BaseURL() string { return "https://chat.example.test" }

func (f *fakeHelpdesk) WebhookURL(name string) string {
	return "https://n8n.example.test/webhook/" + name
}

func (f *fakeHelpdesk) CreateInbox(_ context.Context, name, _ string) (*helpdesk.Inbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, &helpdesk.Error{Op: "create inbox", Err: f.createErr}
	}
	f.nextInbox++
	f.inboxes[f.nextInbox] = name
	return &helpdesk.Inbox{ID: f.nextInbox, Name: name, WebsiteToken: "web-token"}, nil
}

func (f *fakeHelpdesk) DeleteInbox(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inboxes, id)
	return nil
}

func (f *fakeHelpdesk) CreateBot(_ context.Context, name string) (*helpdesk.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.botErr != nil {
		return nil, &helpdesk.Error{Op: "create bot", Err: f.botErr}
	}
	f.botsCreated++
	return &helpdesk.Bot{ID: 7, Name: name + " Bot", AccessToken: "bot-token"}, nil
}

func (f *fakeHelpdesk) AssignBot(context.Context, int64, int64) error {
	return f.assignErr
}

func (f *fakeHelpdesk) DeleteBot(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botsDeleted = append(f.botsDeleted, id)
	return nil
}

func (f *fakeHelpdesk) inboxCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inboxes)
}

type fakeWorkflows struct {
	calls   int
	in      workflow.PatchInput
	err     error
	deleted []string
}

func (f *fakeWorkflows) Clone(_ context.Context, _ string, in workflow.PatchInput) (*workflow.CloneResult, error) {
	f.calls++
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.CloneResult{
		WorkflowID: "wf-123",
		Report:     workflow.PatchReport{AgentNodes: []string{"Main AI"}, HTTPNodes: []string{"Reply"}},
	}, nil
}

func (f *fakeWorkflows) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []events.DemoEvent
}

func (f *fakeEvents) PublishAsync(e events.DemoEvent) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

type failingStore struct {
	registry.Store
}

func (failingStore) Upsert(context.Context, registry.Entry) (registry.Entry, error) {
	return registry.Entry{}, errors.New("registry unavailable")
}

type harness struct {
	svc       *onboard.Service
	site      *httptest.Server
	helpdesk  *fakeHelpdesk
	workflows *fakeWorkflows
	events    *fakeEvents
	registry  *registry.FileStore
	msgRoot   string
	demoRoot  string
	skeleton  string
	kb        *fakeKB
}

type option func(*harness, *onboard.Deps)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Example</title><script>x()</script></head>` +
			`<body><h1>Example Bakery</h1><p>Fresh bread daily.</p></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	root := t.TempDir()
	h := &harness{
		site:      site,
		helpdesk:  newFakeHelpdesk(),
		workflows: &fakeWorkflows{},
		events:    &fakeEvents{},
		registry:  registry.NewFileStore(filepath.Join(root, "registry", "demos.json")),
		msgRoot:   filepath.Join(root, "system_messages"),
		demoRoot:  filepath.Join(root, "demos"),
		skeleton:  filepath.Join(root, "templates", "n8n_System_Message.md"),
		kb:        &fakeKB{},
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(h.skeleton), 0o755))
	require.NoError(t, os.WriteFile(h.skeleton, []byte(skeleton), 0o600))

	deps := onboard.Deps{
		Templates: merge.NewTemplateStore(h.skeleton, nil),
		Fetcher:   scrape.NewFetcher(scrape.FetcherConfig{}, nil),
		KB:        h.kb,
		Helpdesk:  h.helpdesk,
		Workflows: h.workflows,
		Artifacts: artifacts.NewWriter(h.msgRoot, h.demoRoot),
		Registry:  h.registry,
		Events:    h.events,
	}
	for _, opt := range opts {
		opt(h, &deps)
	}

	svc, err := onboard.NewService(onboard.Config{
		DemoDomain:         "localboxs.com",
		TemplateWorkflowID: "tpl-1",
	}, deps)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) registryEntries(t *testing.T) []registry.Entry {
	t.Helper()
	list, err := h.registry.List(context.Background())
	require.NoError(t, err)
	return list
}

func stepStatus(res *onboard.Result, name string) string {
	for _, s := range res.Steps {
		if s.Name == name {
			return s.Status
		}
	}
	return ""
}

func TestOnboard_FirstRunCreatesEverything(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Onboard(context.Background(), onboard.Request{
		BusinessURL:  h.site.URL,
		BusinessName: "Example Bakery",
	})
	require.NoError(t, err)

	assert.Equal(t, "example-bakery", res.Slug)
	assert.Equal(t, "Example Bakery", res.Business)
	assert.Equal(t, "https://example-bakery-demo.localboxs.com", res.DemoURL)
	assert.Equal(t, "web-token", res.Chatwoot.WebsiteToken)
	assert.Equal(t, "wf-123", res.WorkflowID)
	require.NotNil(t, res.AgentBot)
	assert.Equal(t, "bot-token", res.AgentBot.AccessToken)
	assert.False(t, res.BotSetupSkipped)
	require.NotNil(t, res.Notes)
	assert.Equal(t, "https://n8n.example.test/webhook/Example Bakery", res.Notes.N8NWebhook)
	assert.Nil(t, res.UpdatedAt)
	assert.False(t, res.CreatedAt.IsZero())

	msg, err := os.ReadFile(res.SystemMessageFile)
	require.NoError(t, err)
	assert.Contains(t, string(msg), "## Knowledge Base\n\n### Business Overview")
	assert.Contains(t, string(msg), "Fresh bread daily.")
	assert.NotContains(t, string(msg), "TBD")
	assert.Contains(t, string(msg), "## Tone\nFriendly.")
	assert.Equal(t, filepath.Join(h.msgRoot, "n8n_System_Message_Example Bakery.md"), res.SystemMessageFile)

	page, err := os.ReadFile(filepath.Join(h.demoRoot, "example-bakery", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "web-token")

	assert.Equal(t, "Example Bakery", h.workflows.in.BusinessName)
	assert.Equal(t, "chat.example.test", h.workflows.in.HelpdeskHost)
	assert.Equal(t, "bot-token", h.workflows.in.BotToken)

	entries := h.registryEntries(t)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UpdatedAt)
	assert.Equal(t, "wf-123", entries[0].WorkflowID)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, events.DemoCreated, h.events.events[0].EventType)

	assert.Equal(t, onboard.StatusSkipped, stepStatus(res, onboard.StepDiscoverLinks))
	assert.Equal(t, onboard.StatusOK, stepStatus(res, onboard.StepProvisionWorkflow))
}

func TestOnboard_DefaultsNameToHostname(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL})
	require.NoError(t, err)

	// httptest serves on 127.0.0.1.
	assert.Equal(t, "127.0.0.1", res.Business)
	assert.Equal(t, "127-0-0-1", res.Slug)
}

func TestOnboard_ReonboardUpdatesInPlace(t *testing.T) {
	h := newHarness(t)
	req := onboard.Request{BusinessURL: h.site.URL, BusinessName: "Example Bakery"}

	first, err := h.svc.Onboard(context.Background(), req)
	require.NoError(t, err)

	second, err := h.svc.Onboard(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Slug, second.Slug)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	require.NotNil(t, second.UpdatedAt)

	entries := h.registryEntries(t)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].UpdatedAt)
	assert.True(t, entries[0].CreatedAt.Equal(first.CreatedAt))

	require.Len(t, h.events.events, 2)
	assert.Equal(t, events.DemoUpdated, h.events.events[1].EventType)
}

func TestOnboard_UnreachableSiteHasNoSideEffects(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL + "/missing"})
	require.Error(t, err)

	status, msg := onboard.StatusFor(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "not accessible")
	assert.Contains(t, msg, "404")

	assert.Empty(t, h.registryEntries(t))
	assert.Zero(t, h.helpdesk.inboxCount())
	assert.NoDirExists(t, h.msgRoot)
	assert.NoDirExists(t, h.demoRoot)
}

func TestOnboard_BotAPIUnavailableDegrades(t *testing.T) {
	h := newHarness(t)
	h.helpdesk.botErr = helpdesk.ErrBotAPIUnavailable

	res, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "https://acme-demo.localboxs.com", res.DemoURL)
	assert.NotZero(t, res.Chatwoot.InboxID)
	assert.True(t, res.BotSetupSkipped)
	assert.NotEmpty(t, res.Reason)
	assert.NotEmpty(t, res.SuggestedSteps)
	assert.Empty(t, res.WorkflowID)
	assert.Nil(t, res.AgentBot)
	assert.Nil(t, res.Notes)
	assert.Zero(t, h.workflows.calls)
	assert.Equal(t, onboard.StatusFailed, stepStatus(res, onboard.StepProvisionBot))
	assert.Equal(t, onboard.StatusSkipped, stepStatus(res, onboard.StepProvisionWorkflow))

	entries := h.registryEntries(t)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].WorkflowID)
}

func TestOnboard_AssignFailureKeepsBot(t *testing.T) {
	h := newHarness(t)
	h.helpdesk.assignErr = &helpdesk.AssignError{InboxID: 1, BotID: 7}

	res, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.NoError(t, err)

	require.NotNil(t, res.AgentBot)
	assert.Equal(t, int64(7), res.AgentBot.ID)
	assert.True(t, res.BotSetupSkipped)
	assert.Contains(t, res.Reason, "assignment")
	assert.Empty(t, res.WorkflowID)
}

func TestOnboard_WorkflowFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.workflows.err = errors.New("n8n GET /rest/workflows/tpl-1 500")

	res, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.NoError(t, err)

	assert.True(t, res.BotSetupSkipped)
	assert.Contains(t, res.Reason, "Workflow clone failed")
	require.NotNil(t, res.AgentBot)
	assert.Empty(t, res.WorkflowID)
	assert.Nil(t, res.Notes)
}

func TestOnboard_MissingSkeletonStopsBeforeHelpdesk(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(h.skeleton))

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL})
	require.Error(t, err)

	status, msg := onboard.StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Skeleton template not found", msg)
	assert.Zero(t, h.helpdesk.inboxCount())
	assert.Empty(t, h.registryEntries(t))
}

func TestOnboard_InboxFailureRestoresFiles(t *testing.T) {
	h := newHarness(t)
	h.helpdesk.createErr = errors.New("500 Internal Server Error")

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.Error(t, err)

	status, msg := onboard.StatusFor(err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Chatwoot inbox create failed", msg)
	assert.NoFileExists(t, filepath.Join(h.msgRoot, "n8n_System_Message_Acme.md"))
}

func TestOnboard_RegistryFailureCompensates(t *testing.T) {
	h := newHarness(t, func(_ *harness, d *onboard.Deps) {
		d.Registry = failingStore{}
	})

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.Error(t, err)

	status, _ := onboard.StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)

	var stepErr *onboard.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, onboard.StepUpdateRegistry, stepErr.Step)

	assert.Zero(t, h.helpdesk.inboxCount(), "inbox is deleted")
	assert.NoFileExists(t, filepath.Join(h.demoRoot, "acme", "index.html"))
	assert.NoFileExists(t, filepath.Join(h.msgRoot, "n8n_System_Message_Acme.md"))
	assert.Empty(t, h.events.events)
}

func TestOnboard_RegistryFailureRemovesBotAndWorkflow(t *testing.T) {
	h := newHarness(t, func(_ *harness, d *onboard.Deps) {
		d.Registry = failingStore{}
	})

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.Error(t, err)

	assert.Equal(t, 1, h.workflows.calls)
	assert.Equal(t, []string{"wf-123"}, h.workflows.deleted)
	assert.Equal(t, []int64{7}, h.helpdesk.botsDeleted)
	assert.Zero(t, h.helpdesk.inboxCount())
}

func TestOnboard_SuccessKeepsBotAndWorkflow(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"})
	require.NoError(t, err)

	assert.Empty(t, h.workflows.deleted)
	assert.Empty(t, h.helpdesk.botsDeleted)
}

func TestOnboard_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  onboard.Request
		want string
	}{
		{name: "missing url", req: onboard.Request{}, want: "business_url is required"},
		{name: "blank url", req: onboard.Request{BusinessURL: "   "}, want: "business_url is required"},
		{name: "bad scheme", req: onboard.Request{BusinessURL: "ftp://example.com"}, want: "Invalid business_url format"},
		{name: "no host", req: onboard.Request{BusinessURL: "https://"}, want: "Invalid business_url format"},
		{
			name: "unsluggable name",
			req:  onboard.Request{BusinessURL: "https://example.com", BusinessName: "!!!"},
			want: "Could not generate valid slug from business name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Onboard(context.Background(), tt.req)
			require.Error(t, err)

			status, msg := onboard.StatusFor(err)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.want, msg)
		})
	}
	assert.Zero(t, h.helpdesk.inboxCount())
}

func TestOnboard_KBFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	h.kb.err = errors.New("overloaded")

	_, err := h.svc.Onboard(context.Background(), onboard.Request{BusinessURL: h.site.URL})
	require.Error(t, err)

	status, msg := onboard.StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", msg)
}

func TestStatusFor_Permission(t *testing.T) {
	err := &onboard.StepError{Step: onboard.StepWriteDemoPage, Err: &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}}

	status, msg := onboard.StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "File permission denied. Check DEMO_ROOT permissions.", msg)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := onboard.NewService(onboard.Config{}, onboard.Deps{})
	require.Error(t, err)
}

func TestOnboard_ConcurrentSameSlugSerializes(t *testing.T) {
	h := newHarness(t)
	req := onboard.Request{BusinessURL: h.site.URL, BusinessName: "Acme"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		updated int
	)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Onboard(context.Background(), req)
			if !assert.NoError(t, err) {
				return
			}
			if res.UpdatedAt != nil {
				mu.Lock()
				updated++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, updated, "only the first run creates the entry")
	assert.Len(t, h.registryEntries(t), 1)
}
