package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/models"
)

// KnowledgeBaseRepository stores user knowledge bases.
type KnowledgeBaseRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

// NewKnowledgeBaseRepository creates a KnowledgeBaseRepository.
func NewKnowledgeBaseRepository(db *sqlx.DB, log infralogger.Logger) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db, logger: log}
}

// ListByUser returns the user's knowledge bases, newest first, with their
// document and workflow counts.
func (r *KnowledgeBaseRepository) ListByUser(ctx context.Context, userID string) ([]models.KnowledgeBase, error) {
	kbs := []models.KnowledgeBase{}
	query := `
		SELECT kb.id, kb.user_id, kb.name, kb.description, kb.type, kb.is_active,
			kb.total_documents, kb.total_tokens, kb.created_at, kb.updated_at,
			(SELECT COUNT(*) FROM documents d WHERE d.knowledge_base_id = kb.id) AS document_count,
			(SELECT COUNT(*) FROM workflows w WHERE w.knowledge_base_id = kb.id) AS workflow_count
		FROM knowledge_bases kb
		WHERE kb.user_id = $1
		ORDER BY kb.created_at DESC
	`

	if err := r.db.SelectContext(ctx, &kbs, query, userID); err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	return kbs, nil
}

// Create inserts kb, filling its id and timestamps.
func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	now := time.Now().UTC()
	kb.ID = uuid.New()
	kb.CreatedAt = now
	kb.UpdatedAt = now

	query := `
		INSERT INTO knowledge_bases (id, user_id, name, description, type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING total_documents, total_tokens
	`

	err := r.db.QueryRowxContext(ctx, query,
		kb.ID, kb.UserID, kb.Name, kb.Description, kb.Type, kb.IsActive, kb.CreatedAt, kb.UpdatedAt,
	).Scan(&kb.TotalDocuments, &kb.TotalTokens)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return models.ErrAlreadyExists
		}
		return fmt.Errorf("create knowledge base: %w", err)
	}

	r.logger.Info("Knowledge base created",
		infralogger.String("id", kb.ID.String()),
		infralogger.String("user_id", kb.UserID),
	)
	return nil
}
