package repositories

import (
	"context"

	"camx/internal/core/ports"
	"camx/internal/infrastructure/repositories/memory"
	redisrepo "camx/internal/infrastructure/repositories/redis"
	"camx/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateDeviceRepository creates a device repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateDeviceRepository() ports.DeviceRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisDeviceRepository(f.redisClient)
	}
	return memory.NewMemoryDeviceRepository()
}

// CreateHistoryRepository creates a connection-history repository
func (f *RepositoryFactory) CreateHistoryRepository() ports.HistoryRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisHistoryRepository(f.redisClient)
	}
	return memory.NewMemoryHistoryRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
