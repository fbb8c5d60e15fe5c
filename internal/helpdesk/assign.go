package helpdesk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

// Assignment shape names, in default order.
const (
	AttemptPostID          = "post_agent_bot_id"
	AttemptPostNested      = "post_agent_bot_nested"
	AttemptPostPluralNest  = "post_agent_bots_nested"
	AttemptPutID           = "put_agent_bot_id"
	AttemptPatchInboxField = "patch_inbox_agent_bot_id"
)

// AssignAttempt is one request shape for linking a bot to an inbox.
type AssignAttempt struct {
	Name   string
	Method string
	// Suffix is appended to /inboxes/{id}.
	Suffix string
	Body   func(botID int64) any
}

var knownAttempts = []AssignAttempt{
	{
		Name: AttemptPostID, Method: http.MethodPost, Suffix: "/agent_bot",
		Body: func(id int64) any { return map[string]any{"id": id} },
	},
	{
		Name: AttemptPostNested, Method: http.MethodPost, Suffix: "/agent_bot",
		Body: func(id int64) any { return map[string]any{"agent_bot": map[string]any{"id": id}} },
	},
	{
		Name: AttemptPostPluralNest, Method: http.MethodPost, Suffix: "/agent_bots",
		Body: func(id int64) any { return map[string]any{"agent_bot": map[string]any{"id": id}} },
	},
	{
		Name: AttemptPutID, Method: http.MethodPut, Suffix: "/agent_bot",
		Body: func(id int64) any { return map[string]any{"id": id} },
	},
	{
		Name: AttemptPatchInboxField, Method: http.MethodPatch, Suffix: "",
		Body: func(id int64) any { return map[string]any{"agent_bot_id": id} },
	},
}

func selectAttempts(names []string) ([]AssignAttempt, error) {
	if len(names) == 0 {
		return knownAttempts, nil
	}
	byName := make(map[string]AssignAttempt, len(knownAttempts))
	for _, a := range knownAttempts {
		byName[a.Name] = a
	}
	selected := make([]AssignAttempt, 0, len(names))
	for _, n := range names {
		a, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown bot assignment attempt %q", n)
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// AttemptFailure is the error of one assignment shape.
type AttemptFailure struct {
	Attempt string
	Err     error
}

// AssignError is returned when every assignment shape failed.
type AssignError struct {
	InboxID  int64
	BotID    int64
	Failures []AttemptFailure
}

func (e *AssignError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Attempt, f.Err))
	}
	return fmt.Sprintf("bot assignment failed for inbox %d: %s", e.InboxID, strings.Join(parts, "; "))
}

// AssignBot links botID to inboxID, trying each configured shape in order
// until one returns 2xx. The shape that worked last is tried first.
func (c *Client) AssignBot(ctx context.Context, inboxID, botID int64) error {
	assignErr := &AssignError{InboxID: inboxID, BotID: botID}

	for _, a := range c.orderedAttempts() {
		path := c.accountPath("/inboxes/%d%s", inboxID, a.Suffix)
		err := c.do(ctx, a.Method, path, a.Body(botID), nil)
		if err == nil {
			c.remember(a.Name)
			c.log.Info("Assigned agent bot to inbox",
				infralogger.Int64("inbox_id", inboxID),
				infralogger.Int64("bot_id", botID),
				infralogger.String("attempt", a.Name),
			)
			return nil
		}
		if ctx.Err() != nil {
			return &Error{Op: "assign bot", Err: ctx.Err()}
		}
		assignErr.Failures = append(assignErr.Failures, AttemptFailure{Attempt: a.Name, Err: err})
		c.log.Debug("Bot assignment attempt failed",
			infralogger.String("attempt", a.Name),
			infralogger.Error(err),
		)
	}

	return &Error{Op: "assign bot", Err: assignErr}
}

func (c *Client) orderedAttempts() []AssignAttempt {
	c.mu.Lock()
	preferred := c.preferred
	c.mu.Unlock()

	if preferred == "" {
		return c.attempts
	}
	ordered := make([]AssignAttempt, 0, len(c.attempts))
	for _, a := range c.attempts {
		if a.Name == preferred {
			ordered = append(ordered, a)
		}
	}
	for _, a := range c.attempts {
		if a.Name != preferred {
			ordered = append(ordered, a)
		}
	}
	return ordered
}

func (c *Client) remember(name string) {
	c.mu.Lock()
	c.preferred = name
	c.mu.Unlock()
}

// PreferredAttempt returns the shape that last succeeded, or "".
func (c *Client) PreferredAttempt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preferred
}
