// Package api wires the HTTP routes of the onboarding service.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/Fusionaimcp4/localboxs/infrastructure/gin"
	"github.com/Fusionaimcp4/localboxs/internal/handlers"
)

// Handlers groups the route handlers. Dashboard is nil when the database
// is disabled.
type Handlers struct {
	Onboard   *handlers.OnboardHandler
	Inspect   *handlers.InspectHandler
	Demos     *handlers.DemoHandler
	Dashboard *handlers.DashboardHandler
	// Metrics serves the Prometheus registry; nil disables /metrics.
	Metrics http.Handler
}

// Options carries route-level settings.
type Options struct {
	JWTSecret string
	// OnboardLimiter throttles the onboarding endpoints.
	OnboardLimiter gin.HandlerFunc
	// RequestMetrics wraps every route registered here.
	RequestMetrics gin.HandlerFunc
}

// SetupRoutes configures all API routes.
// Health routes are registered by the infrastructure gin builder.
func SetupRoutes(router *gin.Engine, h Handlers, opts Options) {
	if opts.RequestMetrics != nil {
		router.Use(opts.RequestMetrics)
	}
	if h.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.Metrics))
	}

	onboard := []gin.HandlerFunc{h.Onboard.Onboard}
	if opts.OnboardLimiter != nil {
		onboard = append([]gin.HandlerFunc{opts.OnboardLimiter}, onboard...)
	}
	router.POST("/onboard", onboard...)

	v1 := router.Group("/api/v1")
	v1.POST("/onboard", onboard...)
	v1.GET("/demo/inspect", h.Inspect.Inspect)

	demos := v1.Group("/demos")
	demos.GET("", h.Demos.List)
	demos.GET("/:slug", h.Demos.Get)
	demos.GET("/:slug/system-message", h.Demos.SystemMessage)

	if h.Dashboard == nil {
		return
	}
	dashboard := infragin.ProtectedGroup(v1, "/dashboard", opts.JWTSecret)
	dashboard.GET("/knowledge-bases", h.Dashboard.ListKnowledgeBases)
	dashboard.POST("/knowledge-bases", h.Dashboard.CreateKnowledgeBase)
	dashboard.GET("/workflows", h.Dashboard.ListWorkflows)
	dashboard.GET("/demos", h.Dashboard.ListDemos)
}
