// internal/review/queue.go

// Package review feeds cancelled games to the moderation review tooling
// through a Redis list.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list holding cancelled-game records.
var DefaultQueueName = "cancelled_games_review"

// Record holds the minimal info a moderator needs to review a cancelled
// game.
type Record struct {
	GameID            string `json:"game_id"`
	VariantID         string `json:"variant_id"`
	CancelledByUserID string `json:"cancelled_by_user_id"`
	Reason            string `json:"reason"`
	Timestamp         int64  `json:"timestamp"`
}

// Queue accepts review records. Pushes are best-effort from the caller's
// point of view; see game.Cancel.
type Queue interface {
	Push(ctx context.Context, rec Record) error
}

// RedisQueue is the production Queue.
type RedisQueue struct {
	Client *redis.Client
	Name   string
}

// NewRedisQueue wraps an already connected client. An empty name selects
// REVIEW_QUEUE_NAME or DefaultQueueName.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = getEnv("REVIEW_QUEUE_NAME", DefaultQueueName)
	}
	return &RedisQueue{Client: client, Name: name}
}

// Push serializes the record to JSON and appends it to the queue.
func (q *RedisQueue) Push(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal review record: %w", err)
	}
	if err := q.Client.RPush(ctx, q.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.Name, err)
	}
	return nil
}

// ConnectRedis initializes a Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
