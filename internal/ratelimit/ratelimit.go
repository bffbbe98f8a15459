// Package ratelimit throttles the public, signature-authorized surface with
// a fixed window per client. Redis-backed when available so the window is
// shared across replicas; in-process otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more request from key fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

func NewMemory(limit int, windowSize time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  windowSize,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.window {
		m.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Redis counts per key in a redis string with the window as TTL. INCR plus a
// first-hit EXPIRE keeps the window aligned to the first request.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return count <= int64(r.limit), nil
}
