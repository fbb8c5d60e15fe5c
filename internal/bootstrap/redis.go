package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	infraredis "github.com/Fusionaimcp4/localboxs/infrastructure/redis"
	"github.com/Fusionaimcp4/localboxs/internal/config"
	"github.com/Fusionaimcp4/localboxs/internal/events"
)

// SetupRedis connects to Redis when the registry or events need it. A
// Redis-backed registry cannot run without it; events alone degrade to
// disabled.
func SetupRedis(cfg *config.Config, log infralogger.Logger) (*redis.Client, error) {
	required := cfg.Registry.Backend == registryBackendRedis
	if !required && !cfg.Redis.EventsEnabled {
		return nil, nil //nolint:nilnil // Redis not configured
	}

	client, err := infraredis.NewClient(infraredis.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		if required {
			return nil, fmt.Errorf("redis registry: %w", err)
		}
		log.Warn("Redis not available, events disabled", infralogger.Error(err))
		return nil, nil //nolint:nilnil // optional dependency unavailable
	}

	log.Info("Connected to Redis", infralogger.String("redis_address", cfg.Redis.Address))
	return client, nil
}

// SetupEventPublisher creates an optional event publisher if Redis events
// are enabled. Returns nil otherwise.
func SetupEventPublisher(cfg *config.Config, client *redis.Client, log infralogger.Logger) *events.Publisher {
	if !cfg.Redis.EventsEnabled || client == nil {
		return nil
	}
	log.Info("Event publisher initialized", infralogger.String("stream", events.StreamName))
	return events.NewPublisher(client, log)
}
