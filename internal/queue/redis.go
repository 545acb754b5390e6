// Package queue implements the Redis-backed crawl request queue and the
// shared visited-URL set.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillmap/harvester/internal/harvest"
)

// Priorities are clamped into [MinPriority, MaxPriority]; one Redis list
// exists per level so a single blocking pop over the keys in descending
// order yields strict priority with FIFO inside a level.
const (
	MinPriority = 0
	MaxPriority = 9
)

const popTimeout = 5 * time.Second

// RedisQueue is a durable priority queue of crawl requests.
type RedisQueue struct {
	client *redis.Client
	keys   []string
}

// NewRedisQueue builds a queue over an existing client. Prefix names the
// key family, e.g. "harvest:queue" yields "harvest:queue:p9" .. ":p0".
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	keys := make([]string, 0, MaxPriority-MinPriority+1)
	for p := MaxPriority; p >= MinPriority; p-- {
		keys = append(keys, fmt.Sprintf("%s:p%d", prefix, p))
	}
	return &RedisQueue{client: client, keys: keys}
}

func clampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

func (q *RedisQueue) keyFor(priority int) string {
	// keys are stored high to low
	return q.keys[MaxPriority-clampPriority(priority)]
}

// Enqueue appends the request to its priority list.
func (q *RedisQueue) Enqueue(ctx context.Context, req harvest.CrawlRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal crawl request: %w", err)
	}
	if err := q.client.RPush(ctx, q.keyFor(req.Priority), payload).Err(); err != nil {
		return fmt.Errorf("enqueue crawl request: %w", err)
	}
	return nil
}

// Dequeue blocks until a request is available or the context finishes.
// BLPOP scans the given keys in order, so the highest-priority non-empty
// list always wins.
func (q *RedisQueue) Dequeue(ctx context.Context) (harvest.CrawlRequest, error) {
	for {
		if err := ctx.Err(); err != nil {
			return harvest.CrawlRequest{}, err
		}
		res, err := q.client.BLPop(ctx, popTimeout, q.keys...).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timed out empty, poll again
			}
			return harvest.CrawlRequest{}, fmt.Errorf("dequeue crawl request: %w", err)
		}
		// res is [key, payload]
		if len(res) != 2 {
			return harvest.CrawlRequest{}, fmt.Errorf("dequeue crawl request: unexpected reply length %d", len(res))
		}
		var req harvest.CrawlRequest
		if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
			return harvest.CrawlRequest{}, fmt.Errorf("decode crawl request: %w", err)
		}
		return req, nil
	}
}

// RedisVisitedSet tracks fetched target URLs across workers and restarts.
type RedisVisitedSet struct {
	client *redis.Client
	key    string
}

// NewRedisVisitedSet builds a visited set stored under key.
func NewRedisVisitedSet(client *redis.Client, key string) *RedisVisitedSet {
	return &RedisVisitedSet{client: client, key: key}
}

// Add marks a URL as visited. Entries are only ever added; campaign resets
// are an external policy on the key itself.
func (s *RedisVisitedSet) Add(ctx context.Context, url string) error {
	if err := s.client.SAdd(ctx, s.key, url).Err(); err != nil {
		return fmt.Errorf("mark url visited: %w", err)
	}
	return nil
}

// Contains reports whether a URL was already attempted.
func (s *RedisVisitedSet) Contains(ctx context.Context, url string) (bool, error) {
	member, err := s.client.SIsMember(ctx, s.key, url).Result()
	if err != nil {
		return false, fmt.Errorf("check url visited: %w", err)
	}
	return member, nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
