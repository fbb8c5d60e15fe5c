// Package models holds the dashboard database rows.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Demo mirrors one registry entry in the dashboard database.
type Demo struct {
	ID                   uuid.UUID `db:"id"                     json:"id"`
	UserID               *string   `db:"user_id"                json:"userId"`
	Slug                 string    `db:"slug"                   json:"slug"`
	BusinessName         string    `db:"business_name"          json:"businessName"`
	BusinessURL          string    `db:"business_url"           json:"businessUrl"`
	SystemMessageFile    string    `db:"system_message_file"    json:"systemMessageFile"`
	DemoURL              string    `db:"demo_url"               json:"demoUrl"`
	ChatwootInboxID      int64     `db:"chatwoot_inbox_id"      json:"chatwootInboxId"`
	ChatwootWebsiteToken string    `db:"chatwoot_website_token" json:"chatwootWebsiteToken"`
	AgentBotID           *int64    `db:"agent_bot_id"           json:"agentBotId"`
	N8NWorkflowID        *string   `db:"n8n_workflow_id"        json:"n8nWorkflowId"`
	CreatedAt            time.Time `db:"created_at"             json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at"             json:"updatedAt"`
}
