package bootstrap

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infracontext "github.com/Fusionaimcp4/localboxs/infrastructure/context"
	infragin "github.com/Fusionaimcp4/localboxs/infrastructure/gin"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/api"
	"github.com/Fusionaimcp4/localboxs/internal/config"
	"github.com/Fusionaimcp4/localboxs/internal/handlers"
	"github.com/Fusionaimcp4/localboxs/internal/middleware"
	"github.com/Fusionaimcp4/localboxs/internal/repository"
)

// SetupHTTPServer creates and configures the HTTP server. db and
// redisClient may be nil. done stops the rate limiter sweeper.
func SetupHTTPServer(
	cfg *config.Config,
	svc *Services,
	db *sqlx.DB,
	redisClient *redis.Client,
	done <-chan struct{},
	log infralogger.Logger,
) *infragin.Server {
	h := api.Handlers{
		Onboard: handlers.NewOnboardHandler(svc.Onboard, cfg.Server.OnboardTimeout, log),
		Inspect: handlers.NewInspectHandler(svc.Fetcher, log),
		Demos:   handlers.NewDemoHandler(svc.Registry, svc.Artifacts, log),
		Metrics: svc.Metrics.Handler(),
	}

	builder := infragin.NewServerBuilder(serviceName, cfg.Server.Port).
		WithLogger(log).
		WithHost(cfg.Server.Host).
		WithDebug(cfg.Debug).
		WithVersion(version).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, 0)

	if db != nil {
		h.Dashboard = handlers.NewDashboardHandler(
			repository.NewKnowledgeBaseRepository(db, log),
			repository.NewWorkflowRepository(db, log),
			repository.NewDemoRepository(db, log),
			log,
		)
		builder = builder.WithDatabaseHealthCheck(func() error {
			ctx, cancel := infracontext.WithPingTimeout()
			defer cancel()
			return db.PingContext(ctx)
		})
	}
	if redisClient != nil {
		builder = builder.WithRedisHealthCheck(func() error {
			ctx, cancel := infracontext.WithPingTimeout()
			defer cancel()
			return redisClient.Ping(ctx).Err()
		})
	}

	limiter := middleware.RateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, done)

	return builder.
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, h, api.Options{
				JWTSecret:      cfg.Auth.JWTSecret,
				OnboardLimiter: limiter,
				RequestMetrics: svc.Metrics.Middleware(),
			})
		}).
		Build()
}
