// Package repository implements the dashboard data access on Postgres.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/models"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
)

const demoColumns = `id, user_id, slug, business_name, business_url, system_message_file, demo_url,
	chatwoot_inbox_id, chatwoot_website_token, agent_bot_id, n8n_workflow_id, created_at, updated_at`

// DemoRepository mirrors registry entries into the demos table.
type DemoRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

// NewDemoRepository creates a DemoRepository.
func NewDemoRepository(db *sqlx.DB, log infralogger.Logger) *DemoRepository {
	return &DemoRepository{db: db, logger: log}
}

// UpsertDemo writes e keyed by slug, and records its workflow when present.
// The registry stays the system of record; this copy is not transactional
// with it.
func (r *DemoRepository) UpsertDemo(ctx context.Context, e registry.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var agentBotID *int64
	if e.AgentBot != nil {
		agentBotID = &e.AgentBot.ID
	}
	var workflowID *string
	if e.WorkflowID != "" {
		workflowID = &e.WorkflowID
	}
	updatedAt := e.CreatedAt
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	query := `
		INSERT INTO demos (id, slug, business_name, business_url, system_message_file, demo_url,
			chatwoot_inbox_id, chatwoot_website_token, agent_bot_id, n8n_workflow_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (slug) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			business_url = EXCLUDED.business_url,
			system_message_file = EXCLUDED.system_message_file,
			demo_url = EXCLUDED.demo_url,
			chatwoot_inbox_id = EXCLUDED.chatwoot_inbox_id,
			chatwoot_website_token = EXCLUDED.chatwoot_website_token,
			agent_bot_id = EXCLUDED.agent_bot_id,
			n8n_workflow_id = EXCLUDED.n8n_workflow_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	var demoID uuid.UUID
	err = tx.QueryRowxContext(ctx, query,
		uuid.New(), e.Slug, e.Business, e.URL, e.SystemMessageFile, e.DemoURL,
		e.Chatwoot.InboxID, e.Chatwoot.WebsiteToken, agentBotID, workflowID, e.CreatedAt, updatedAt,
	).Scan(&demoID)
	if err != nil {
		return fmt.Errorf("upsert demo %s: %w", e.Slug, err)
	}

	if workflowID != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflows (id, demo_id, n8n_workflow_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (n8n_workflow_id) DO UPDATE SET
				demo_id = EXCLUDED.demo_id,
				updated_at = EXCLUDED.updated_at
		`, uuid.New(), demoID, *workflowID, models.WorkflowActive, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert workflow %s: %w", *workflowID, err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit demo %s: %w", e.Slug, commitErr)
	}

	r.logger.Debug("Mirrored demo to database", infralogger.Slug(e.Slug))
	return nil
}

// List returns all demos, newest first.
func (r *DemoRepository) List(ctx context.Context) ([]models.Demo, error) {
	demos := []models.Demo{}
	query := `SELECT ` + demoColumns + ` FROM demos ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &demos, query); err != nil {
		return nil, fmt.Errorf("list demos: %w", err)
	}
	return demos, nil
}
