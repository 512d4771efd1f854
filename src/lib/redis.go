package lib

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// LastSignalAt returns the timestamp of the newest occupancy signal seen
// for a slot, or the zero time when none was recorded.
func LastSignalAt(ctx context.Context, slotID string) time.Time {
	rdb := GetRedisClient()
	if rdb == nil {
		return time.Time{}
	}
	val, err := rdb.Get(ctx, signalKey(slotID)).Result()
	if err == redis.Nil {
		return time.Time{}
	} else if err != nil {
		log.Printf("[redis] Error reading last signal for %s: %s\n", slotID, err.Error())
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// RecordSignalAt stores the timestamp of the newest occupancy signal
// applied to a slot. Failures are logged and ignored so a cache outage
// never blocks signal processing.
func RecordSignalAt(ctx context.Context, slotID string, ts time.Time) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Set(ctx, signalKey(slotID), ts.Format(time.RFC3339Nano), 24*time.Hour).Err(); err != nil {
		log.Printf("[redis] Error recording signal for %s: %s\n", slotID, err.Error())
	}
}

func signalKey(slotID string) string {
	return fmt.Sprintf("slot:%s:last_signal", slotID)
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}
