package bootstrap

import (
	"errors"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/config"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
)

const registryBackendRedis = "redis"

// SetupRegistry selects the demo registry backend.
func SetupRegistry(cfg *config.Config, client *redis.Client, log infralogger.Logger) (registry.Store, error) {
	if cfg.Registry.Backend == registryBackendRedis {
		if client == nil {
			return nil, errors.New("redis registry backend selected but redis is unavailable")
		}
		log.Info("Using Redis demo registry", infralogger.String("key", cfg.Registry.RedisKey))
		return registry.NewRedisStore(client, cfg.Registry.RedisKey), nil
	}

	store := registry.NewFileStore(cfg.Registry.Path)
	log.Info("Using file demo registry", infralogger.String("path", store.Path()))
	return store, nil
}
