package app

import "github.com/redis/go-redis/v9"

// NewRedisClient builds the shared go-redis client from Config, used by all
// three binaries (cmd/monitor, cmd/worker, cmd/server) to reach the Job
// Queue and Live Status Store.
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
