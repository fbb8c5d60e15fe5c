// Package bootstrap handles application initialization and lifecycle management
// for the onboarding service.
package bootstrap

import (
	"context"
	"fmt"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/infrastructure/profiling"
	"github.com/Fusionaimcp4/localboxs/internal/reconcile"
)

const serviceName = "localboxs-onboard"

// version is set at build time with -ldflags "-X ...bootstrap.version=...".
var version = "dev"

// Start initializes and starts the onboarding service.
func Start() error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Profiling (if enabled)
	profiling.StartPprofServer(log)
	profiler, err := profiling.StartPyroscope(serviceName, version, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", infralogger.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phase 2: Setup database (optional)
	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if db != nil {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("Failed to close database", infralogger.Error(closeErr))
			}
		}()
	}

	// Phase 3: Setup Redis, registry and event publisher
	redisClient, err := SetupRedis(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	reg, err := SetupRegistry(cfg, redisClient, log)
	if err != nil {
		return err
	}
	publisher := SetupEventPublisher(cfg, redisClient, log)

	// Phase 4: Build the onboarding pipeline
	svc, err := SetupServices(ctx, cfg, db, reg, publisher, log)
	if err != nil {
		return fmt.Errorf("failed to set up services: %w", err)
	}
	defer func() { _ = svc.Templates.Close() }()

	// Phase 5: Start the drift reconciler (optional)
	if cfg.Reconcile.Enabled {
		var pub reconcile.EventPublisher
		if publisher != nil {
			pub = publisher
		}
		reconciler := reconcile.New(reconcile.Config{
			Schedule: cfg.Reconcile.Schedule,
			Prune:    cfg.Reconcile.Prune,
		}, reg, svc.Helpdesk, pub, svc.Metrics, log)
		if startErr := reconciler.Start(ctx); startErr != nil {
			return fmt.Errorf("failed to start reconciler: %w", startErr)
		}
		defer reconciler.Stop()
	}

	// Phase 6: Setup and run HTTP server
	server := SetupHTTPServer(cfg, svc, db, redisClient, ctx.Done(), log)

	log.Info("Starting HTTP server",
		infralogger.String("host", cfg.Server.Host),
		infralogger.Int("port", cfg.Server.Port),
		infralogger.String("registry_backend", cfg.Registry.Backend),
		infralogger.Bool("database", db != nil),
		infralogger.Bool("workflows", cfg.N8N.Enabled()),
	)

	if runErr := server.RunWithGracefulShutdown(ctx); runErr != nil {
		log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
