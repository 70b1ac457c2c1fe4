package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenRepository 维护已登出 token 的黑名单。
type TokenRepository interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

type redisTokenRepository struct {
	redisClient *redis.Client
}

// NewTokenRepository 创建基于 Redis 的黑名单；client 为 nil 时返回 no-op 实现。
func NewTokenRepository(redisClient *redis.Client) TokenRepository {
	if redisClient == nil {
		return noopTokenRepository{}
	}
	return &redisTokenRepository{redisClient: redisClient}
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

// Blacklist 以 token 剩余有效期作为 key 的过期时间。
func (r *redisTokenRepository) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redisClient.Set(ctx, blacklistKey(token), "true", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func (r *redisTokenRepository) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	err := r.redisClient.Get(ctx, blacklistKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return true, nil
}

type noopTokenRepository struct{}

func (noopTokenRepository) Blacklist(context.Context, string, time.Duration) error { return nil }

func (noopTokenRepository) IsBlacklisted(context.Context, string) (bool, error) { return false, nil }
