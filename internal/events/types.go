// Package events publishes demo lifecycle events to a Redis stream.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream for demo events.
const StreamName = "demo-events"

// EventType represents the type of demo event.
type EventType string

const (
	// DemoCreated is published after the first onboarding of a slug.
	DemoCreated EventType = "DEMO_CREATED"
	// DemoUpdated is published when a slug is onboarded again.
	DemoUpdated EventType = "DEMO_UPDATED"
	// DemoDrifted is published by the reconciler when an inbox is gone.
	DemoDrifted EventType = "DEMO_DRIFTED"
)

// DemoEvent is the envelope for all demo events.
type DemoEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Slug      string    `json:"slug"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// OnboardedPayload contains data for DEMO_CREATED and DEMO_UPDATED events.
type OnboardedPayload struct {
	Business        string `json:"business"`
	URL             string `json:"url"`
	DemoURL         string `json:"demo_url"`
	InboxID         int64  `json:"inbox_id"`
	WorkflowID      string `json:"workflow_id,omitempty"`
	BotSetupSkipped bool   `json:"bot_setup_skipped"`
}

// DriftedPayload contains data for DEMO_DRIFTED events.
type DriftedPayload struct {
	InboxID int64 `json:"inbox_id"`
	Pruned  bool  `json:"pruned"`
}
