package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/Fusionaimcp4/localboxs/infrastructure/jwt"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/models"
)

// KnowledgeBaseStore is the knowledge base repository.
type KnowledgeBaseStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.KnowledgeBase, error)
	Create(ctx context.Context, kb *models.KnowledgeBase) error
}

// WorkflowLister lists a user's workflows.
type WorkflowLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.Workflow, error)
}

// DemoLister lists the demo rows of the relational mirror.
type DemoLister interface {
	List(ctx context.Context) ([]models.Demo, error)
}

// DashboardHandler serves the signed-in user's dashboard data.
type DashboardHandler struct {
	knowledgeBases KnowledgeBaseStore
	workflows      WorkflowLister
	demos          DemoLister
	logger         infralogger.Logger
}

func NewDashboardHandler(
	kbs KnowledgeBaseStore,
	workflows WorkflowLister,
	demos DemoLister,
	log infralogger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		knowledgeBases: kbs,
		workflows:      workflows,
		demos:          demos,
		logger:         log,
	}
}

// userID returns the token subject, writing 401 when there is none.
func userID(c *gin.Context) (string, bool) {
	claims, ok := jwt.GetClaims(c)
	if !ok || claims.Sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return claims.Sub, true
}

func (h *DashboardHandler) ListKnowledgeBases(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	kbs, err := h.knowledgeBases.ListByUser(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("Failed to fetch knowledge bases",
			infralogger.String("user_id", uid),
			infralogger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch knowledge bases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"knowledgeBases": kbs,
		"stats":          models.SummarizeKnowledgeBases(kbs),
	})
}

func (h *DashboardHandler) CreateKnowledgeBase(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.KnowledgeBaseCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	if utf8.RuneCountInString(req.Name) > models.KnowledgeBaseNameMaxLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be 100 characters or less"})
		return
	}

	kb := &models.KnowledgeBase{
		UserID:   uid,
		Name:     name,
		Type:     req.Type,
		IsActive: true,
	}
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			kb.Description = &d
		}
	}
	if kb.Type == "" {
		kb.Type = models.KnowledgeBaseTypeUser
	}
	if req.IsActive != nil {
		kb.IsActive = *req.IsActive
	}

	if err := h.knowledgeBases.Create(c.Request.Context(), kb); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Knowledge base already exists"})
			return
		}
		h.logger.Error("Failed to create knowledge base",
			infralogger.String("user_id", uid),
			infralogger.String("name", name),
			infralogger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create knowledge base"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"knowledgeBase": kb,
	})
}

func (h *DashboardHandler) ListWorkflows(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	wfs, err := h.workflows.ListByUser(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("Failed to fetch workflows",
			infralogger.String("user_id", uid),
			infralogger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch workflows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workflows": wfs,
		"stats":     models.SummarizeWorkflows(wfs),
	})
}

func (h *DashboardHandler) ListDemos(c *gin.Context) {
	if _, ok := userID(c); !ok {
		return
	}

	demos, err := h.demos.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch demos", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch demos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"demos": demos,
		"count": len(demos),
	})
}
