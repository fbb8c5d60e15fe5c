package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrNoAgentNode means no node received the system message.
var ErrNoAgentNode = errors.New("workflow has no agent node to receive the system message")

// strippedFields identify a stored workflow; a create must not carry them.
var strippedFields = []string{"id", "versionId", "createdAt", "updatedAt", "active", "shared", "tags", "pinData"}

// Graph is a workflow definition as exchanged with the platform.
type Graph map[string]any

// Roles declares which nodes play which part, by node id or name. A role
// with no entries falls back to the name heuristics.
type Roles struct {
	Agent        []string `mapstructure:"agent"         yaml:"agent"`
	Webhook      []string `mapstructure:"webhook"       yaml:"webhook"`
	HelpdeskHTTP []string `mapstructure:"helpdesk_http" yaml:"helpdesk_http"`
}

// RolesFromMap builds Roles from the config form {"agent": [...], ...}.
func RolesFromMap(m map[string][]string) (Roles, error) {
	var r Roles
	if err := mapstructure.Decode(m, &r); err != nil {
		return Roles{}, fmt.Errorf("decode node roles: %w", err)
	}
	return r, nil
}

// PatchInput carries the per-business values written into the graph.
type PatchInput struct {
	BusinessName  string
	SystemMessage string
	BotToken      string
	// HelpdeskHost identifies HTTP nodes that call the helpdesk.
	HelpdeskHost string
	// WebhookBaseURL is the platform root for production webhook URLs.
	WebhookBaseURL string
	Roles          Roles
}

// PatchReport lists the nodes patched per role, by name.
type PatchReport struct {
	AgentNodes   []string `json:"agent_nodes"`
	WebhookNodes []string `json:"webhook_nodes"`
	HTTPNodes    []string `json:"http_nodes"`
}

type nodeMeta struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

type header struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Patch returns a copy of g prepared for creation as the business's own
// workflow. g itself is not modified.
func Patch(g Graph, in PatchInput) (Graph, PatchReport, error) {
	var report PatchReport

	out, err := clone(g)
	if err != nil {
		return nil, report, err
	}

	out["name"] = in.BusinessName
	for _, f := range strippedFields {
		delete(out, f)
	}
	if meta, ok := out["meta"].(map[string]any); ok {
		delete(meta, "instanceId")
	}

	nodes, _ := out["nodes"].([]any)
	webhookURL := strings.TrimRight(in.WebhookBaseURL, "/") + "/webhook/" + in.BusinessName
	helpdeskHost := strings.ToLower(in.HelpdeskHost)
	if helpdeskHost == "" {
		helpdeskHost = "chatwoot"
	}

	for _, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var meta nodeMeta
		if decodeErr := mapstructure.WeakDecode(node, &meta); decodeErr != nil {
			continue
		}

		if isAgent(meta, in.Roles) && patchAgent(node, in.SystemMessage) {
			report.AgentNodes = append(report.AgentNodes, meta.Name)
		}
		if isWebhook(meta, in.Roles) {
			patchWebhook(node, in.BusinessName, webhookURL)
			report.WebhookNodes = append(report.WebhookNodes, meta.Name)
		}
		if isHelpdeskHTTP(meta, node, helpdeskHost, in.Roles) {
			patchHeaders(node, in.BotToken)
			report.HTTPNodes = append(report.HTTPNodes, meta.Name)
		}
	}

	if len(report.AgentNodes) == 0 {
		return nil, report, ErrNoAgentNode
	}
	return out, report, nil
}

func clone(g Graph) (Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("copy workflow: %w", err)
	}
	var out Graph
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy workflow: %w", err)
	}
	return out, nil
}

func declared(meta nodeMeta, refs []string) bool {
	for _, ref := range refs {
		if ref == meta.ID || strings.EqualFold(ref, meta.Name) {
			return true
		}
	}
	return false
}

func isAgent(meta nodeMeta, roles Roles) bool {
	if len(roles.Agent) > 0 {
		return declared(meta, roles.Agent)
	}
	name := strings.ToLower(meta.Name)
	return strings.Contains(name, "main ai") || strings.Contains(name, "agent")
}

func isWebhook(meta nodeMeta, roles Roles) bool {
	if len(roles.Webhook) > 0 {
		return declared(meta, roles.Webhook)
	}
	return strings.Contains(strings.ToLower(meta.Name), "webhook")
}

func isHelpdeskHTTP(meta nodeMeta, node map[string]any, host string, roles Roles) bool {
	if len(roles.HelpdeskHTTP) > 0 {
		return declared(meta, roles.HelpdeskHTTP)
	}
	if !strings.Contains(strings.ToLower(meta.Type), "http") {
		return false
	}
	params := child(node, "parameters")
	u, _ := params["url"].(string)
	if u == "" {
		u, _ = child(params, "options")["url"].(string)
	}
	return strings.Contains(strings.ToLower(u), host)
}

// child returns m[key] as a map, or nil.
func child(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	c, _ := m[key].(map[string]any)
	return c
}

// ensure returns m[key] as a map, creating it when absent or not a map.
func ensure(m map[string]any, key string) map[string]any {
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	c := map[string]any{}
	m[key] = c
	return c
}

// patchAgent writes msg into each system message shape the node has and
// reports whether any was found.
func patchAgent(node map[string]any, msg string) bool {
	params := child(node, "parameters")
	if params == nil {
		return false
	}
	patched := false

	if _, ok := params["systemMessage"]; ok {
		params["systemMessage"] = msg
		patched = true
	}

	messages, _ := params["messages"].([]any)
	if values, ok := child(params, "messages")["messageValues"].([]any); ok {
		messages = values
	}
	for _, raw := range messages {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := m["type"].(string); strings.EqualFold(t, "system") {
			if _, hasMessage := m["message"]; hasMessage {
				m["message"] = msg
			} else {
				m["text"] = msg
			}
			patched = true
		}
	}

	if extra := child(child(params, "options"), "additionalFields"); extra != nil {
		extra["systemMessage"] = msg
		patched = true
	}
	if options := child(params, "options"); options != nil {
		if _, ok := options["systemMessage"]; ok {
			options["systemMessage"] = msg
			patched = true
		}
	}

	return patched
}

func patchWebhook(node map[string]any, path, webhookURL string) {
	params := ensure(node, "parameters")
	params["path"] = path
	ensure(params, "options")["webhookUrl"] = webhookURL
}

func patchHeaders(node map[string]any, token string) {
	options := ensure(ensure(node, "parameters"), "options")

	var headers []header
	if err := mapstructure.Decode(options["headers"], &headers); err != nil {
		headers = nil
	}

	headers = upsertHeader(headers, "api_access_token", token)
	headers = upsertHeader(headers, "Authorization", "Bearer "+token)
	headers = upsertHeader(headers, "Content-Type", "application/json")

	list := make([]any, 0, len(headers))
	for _, h := range headers {
		list = append(list, map[string]any{"name": h.Name, "value": h.Value})
	}
	options["headers"] = list
}

func upsertHeader(headers []header, name, value string) []header {
	for i := range headers {
		if strings.EqualFold(headers[i].Name, name) {
			headers[i].Value = value
			return headers
		}
	}
	return append(headers, header{Name: name, Value: value})
}
