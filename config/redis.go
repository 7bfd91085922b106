package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/HSouheill/referral_backend/logger"
)

// ConnectRedis connects to Redis. It returns nil when Redis is unreachable;
// callers fall back to the in-process task queue.
func ConnectRedis(cfg *AppConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn("Redis connection failed: %v", err)
		logger.Warn("Post-commit tasks will use the in-process queue and are lost on restart")
		_ = client.Close()
		return nil
	}

	logger.Info("Connected to Redis at %s", cfg.RedisAddr)
	return client
}
