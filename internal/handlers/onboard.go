// Package handlers holds the gin handlers of the onboarding service.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/onboard"
)

// Onboarder runs the onboarding pipeline.
type Onboarder interface {
	Onboard(ctx context.Context, req onboard.Request) (*onboard.Result, error)
}

type OnboardHandler struct {
	service Onboarder
	timeout time.Duration
	logger  infralogger.Logger
}

// NewOnboardHandler creates an OnboardHandler. timeout bounds one pipeline
// run; zero leaves only the request context.
func NewOnboardHandler(service Onboarder, timeout time.Duration, log infralogger.Logger) *OnboardHandler {
	return &OnboardHandler{
		service: service,
		timeout: timeout,
		logger:  log,
	}
}

func (h *OnboardHandler) Onboard(c *gin.Context) {
	var req onboard.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid onboarding request body", infralogger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.service.Onboard(ctx, req)
	if err != nil {
		status, msg := onboard.StatusFor(err)
		infralogger.FromContext(ctx).Warn("Onboarding request failed",
			infralogger.String("business_url", req.BusinessURL),
			infralogger.Int("status", status),
			infralogger.Error(err),
		)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, res)
}
