package models

import (
	"time"

	"github.com/google/uuid"
)

// Knowledge base types.
const (
	KnowledgeBaseTypeUser = "USER"
)

// KnowledgeBaseNameMaxLen is the longest accepted knowledge base name.
const KnowledgeBaseNameMaxLen = 100

// KnowledgeBase is a user's document collection.
type KnowledgeBase struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	UserID         string    `db:"user_id"         json:"userId"`
	Name           string    `db:"name"            json:"name"`
	Description    *string   `db:"description"     json:"description"`
	Type           string    `db:"type"            json:"type"`
	IsActive       bool      `db:"is_active"       json:"isActive"`
	TotalDocuments int       `db:"total_documents" json:"totalDocuments"`
	TotalTokens    int64     `db:"total_tokens"    json:"totalTokens"`
	CreatedAt      time.Time `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updatedAt"`

	// Counts are filled by list queries.
	DocumentCount int `db:"document_count" json:"documentCount"`
	WorkflowCount int `db:"workflow_count" json:"workflowCount"`
}

// KnowledgeBaseCreateRequest is the POST body for a knowledge base.
type KnowledgeBaseCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Type        string  `json:"type"`
	IsActive    *bool   `json:"isActive"`
}

// KnowledgeBaseStats summarizes a user's knowledge bases.
type KnowledgeBaseStats struct {
	Total          int   `json:"total"`
	Active         int   `json:"active"`
	TotalDocuments int   `json:"totalDocuments"`
	TotalTokens    int64 `json:"totalTokens"`
}

// SummarizeKnowledgeBases computes the dashboard stats.
func SummarizeKnowledgeBases(kbs []KnowledgeBase) KnowledgeBaseStats {
	stats := KnowledgeBaseStats{Total: len(kbs)}
	for i := range kbs {
		if kbs[i].IsActive {
			stats.Active++
		}
		stats.TotalDocuments += kbs[i].TotalDocuments
		stats.TotalTokens += kbs[i].TotalTokens
	}
	return stats
}
