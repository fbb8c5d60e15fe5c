// Package registry records every onboarded demo, keyed by slug.
package registry

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned for an unknown slug.
	ErrNotFound = errors.New("demo not found")
	// ErrInboxChanged is returned by DeleteIfInbox when the entry now
	// points at another inbox.
	ErrInboxChanged = errors.New("demo inbox changed")
)

// Chatwoot identifies the helpdesk inbox behind a demo.
type Chatwoot struct {
	InboxID      int64  `json:"inbox_id"`
	WebsiteToken string `json:"website_token"`
}

// AgentBot is the helpdesk bot attached to the demo inbox.
type AgentBot struct {
	ID          int64  `json:"id"`
	AccessToken string `json:"access_token,omitempty"`
}

// Entry is one onboarded demo.
type Entry struct {
	Slug              string     `json:"slug"`
	Business          string     `json:"business"`
	URL               string     `json:"url"`
	SystemMessageFile string     `json:"system_message_file"`
	DemoURL           string     `json:"demo_url"`
	Chatwoot          Chatwoot   `json:"chatwoot"`
	WorkflowID        string     `json:"workflow_id,omitempty"`
	AgentBot          *AgentBot  `json:"agent_bot,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// Redacted returns a copy without the bot access token, for responses
// served to unauthenticated callers.
func (e Entry) Redacted() Entry {
	if e.AgentBot != nil {
		e.AgentBot = &AgentBot{ID: e.AgentBot.ID}
	}
	return e
}

// Store persists entries. Upsert replaces the entry for e.Slug, keeping the
// stored created_at and setting updated_at only when an entry existed.
type Store interface {
	Upsert(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, slug string) (Entry, error)
	// List returns entries newest first.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, slug string) error
	// DeleteIfInbox deletes slug only while it still points at inboxID.
	DeleteIfInbox(ctx context.Context, slug string, inboxID int64) error
}

// merge applies the upsert timestamp rules.
func merge(existing *Entry, e Entry, now time.Time) Entry {
	now = now.UTC()
	if existing == nil {
		e.CreatedAt = now
		e.UpdatedAt = nil
		return e
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = &now
	return e
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Slug < entries[j].Slug
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
