package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"insurapolis-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。
// Redis 在本服务中承载登出令牌黑名单与 WebSocket 一次性票据两类短时状态。
func InitRedis(addr, password string, db int) {
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
