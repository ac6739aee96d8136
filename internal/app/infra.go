package app

import (
	"context"

	"xfoli-web/internal/config"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/redis"
	"xfoli-web/internal/session"
)

type Infra struct {
	Redis    *redis.Client // nil when sessions are kept in memory
	Sessions session.Store
}

func setupInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory", nil)
		return &Infra{Sessions: session.NewMemoryStore()}, nil
	}

	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}

	logger.Info("redis ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	return &Infra{
		Redis:    redisClient,
		Sessions: session.NewRedisStore(redisClient.Client),
	}, nil
}

func (i *Infra) Close() error {
	if i.Redis != nil {
		return i.Redis.Close()
	}
	return nil
}
