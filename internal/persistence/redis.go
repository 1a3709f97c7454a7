package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Publish sends a payload to a pub/sub channel. Failures are the caller's to
// log; event fan-out is best effort.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Publish(ctx, channel, payload).Err()
}

// TryClaim acquires a short-lived claim key via SETNX. It is a fast-path guard
// for the take-ticket race; the conditional UPDATE in the ticket repository
// remains the authority.
func (r *Redis) TryClaim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, owner, ttl).Result()
}
