package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/models"
)

// WorkflowRepository reads cloned workflows.
type WorkflowRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

// NewWorkflowRepository creates a WorkflowRepository.
func NewWorkflowRepository(db *sqlx.DB, log infralogger.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: log}
}

// ListByUser returns the user's workflows, most recently updated first,
// each with a summary of its demo.
func (r *WorkflowRepository) ListByUser(ctx context.Context, userID string) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	query := `
		SELECT w.id, w.user_id, w.demo_id, w.knowledge_base_id, w.n8n_workflow_id, w.status,
			w.created_at, w.updated_at,
			d.business_name AS "demo.business_name",
			d.slug AS "demo.slug",
			d.demo_url AS "demo.demo_url"
		FROM workflows w
		LEFT JOIN demos d ON d.id = w.demo_id
		WHERE w.user_id = $1
		ORDER BY w.updated_at DESC
	`

	if err := r.db.SelectContext(ctx, &workflows, query, userID); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	for i := range workflows {
		if d := workflows[i].Demo; d != nil && d.Slug == nil {
			workflows[i].Demo = nil
		}
	}
	return workflows, nil
}
