package models

import (
	"time"

	"github.com/google/uuid"
)

// Workflow statuses.
const (
	WorkflowActive   = "ACTIVE"
	WorkflowInactive = "INACTIVE"
	WorkflowError    = "ERROR"
)

// WorkflowDemo is the demo summary embedded in a workflow listing.
type WorkflowDemo struct {
	BusinessName *string `db:"business_name" json:"businessName"`
	Slug         *string `db:"slug"          json:"slug"`
	DemoURL      *string `db:"demo_url"      json:"demoUrl"`
}

// Workflow is a cloned automation workflow.
type Workflow struct {
	ID              uuid.UUID     `db:"id"                json:"id"`
	UserID          *string       `db:"user_id"           json:"userId"`
	DemoID          uuid.NullUUID `db:"demo_id"           json:"demoId"`
	KnowledgeBaseID uuid.NullUUID `db:"knowledge_base_id" json:"knowledgeBaseId"`
	N8NWorkflowID   string        `db:"n8n_workflow_id"   json:"n8nWorkflowId"`
	Status          string        `db:"status"            json:"status"`
	CreatedAt       time.Time     `db:"created_at"        json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at"        json:"updatedAt"`

	Demo *WorkflowDemo `db:"demo" json:"demo"`
}

// WorkflowStats counts workflows by status.
type WorkflowStats struct {
	TotalWorkflows    int `json:"totalWorkflows"`
	ActiveWorkflows   int `json:"activeWorkflows"`
	InactiveWorkflows int `json:"inactiveWorkflows"`
	ErrorWorkflows    int `json:"errorWorkflows"`
}

// SummarizeWorkflows computes the dashboard stats.
func SummarizeWorkflows(wfs []Workflow) WorkflowStats {
	stats := WorkflowStats{TotalWorkflows: len(wfs)}
	for i := range wfs {
		switch wfs[i].Status {
		case WorkflowActive:
			stats.ActiveWorkflows++
		case WorkflowInactive:
			stats.InactiveWorkflows++
		case WorkflowError:
			stats.ErrorWorkflows++
		}
	}
	return stats
}
