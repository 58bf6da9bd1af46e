package database

import (
	"fibreflow/pkg/config"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

var (
	redisInstance *redis.Client
	redisOnce     sync.Once
)

// GetRedisClient 获取Redis客户端的单例实例
func GetRedisClient() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.GetConfig()
		redisInstance = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	})
	return redisInstance
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if redisInstance != nil {
		return redisInstance.Close()
	}
	return nil
}
