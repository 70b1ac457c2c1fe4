package database

import (
	"context"

	"study-with-speech/pkg/log"

	"github.com/go-redis/redis/v8"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。addr 为空时不创建客户端，RDB 保持 nil。
func InitRedis(addr, password string, db int) {
	if addr == "" {
		log.Warnf("Redis 地址未配置，token 黑名单将被禁用")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}
	log.Info("Redis client connected successfully")
}
