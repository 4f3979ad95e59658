package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// initRedis initializes the Redis connection
func initRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis:6379"
	}

	opt, err := redis.ParseURL(fmt.Sprintf("redis://%s", redisURL))
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	redisClient = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	return nil
}

func transactionsCacheKey(userID int) string {
	return "transactions:" + strconv.Itoa(userID)
}

func dashboardCacheKey(userID int) string {
	return "dashboard:" + strconv.Itoa(userID)
}

// cacheGet fetches a cached JSON value into dest. Returns false on a miss,
// an unreachable cache, or a stale payload that no longer unmarshals.
func cacheGet(ctx context.Context, key string, dest any) bool {
	if redisClient == nil {
		return false
	}
	cached, err := redisClient.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

// cacheSet stores a JSON value with a TTL; failures are ignored since the
// cache is best-effort
func cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if redisClient == nil {
		return
	}
	if data, err := json.Marshal(value); err == nil {
		redisClient.SetEx(ctx, key, data, ttl)
	}
}

// invalidateUserCaches drops the cached transaction list and dashboard for
// one user after a write
func invalidateUserCaches(ctx context.Context, userID int) {
	if redisClient == nil {
		return
	}
	redisClient.Del(ctx, transactionsCacheKey(userID), dashboardCacheKey(userID))
}
