package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/luzdodia/api/pkg/response"
)

// Counter counts hits of a key inside a fixed window
type Counter interface {
	// Hit increments key and returns the new count and the time left in
	// the window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RedisCounter struct {
	redis *redis.Client
}

func NewRedisCounter(redisClient *redis.Client) *RedisCounter {
	return &RedisCounter{redis: redisClient}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
		return count, window, nil
	}
	ttl, err := r.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// Lost expiry; start a fresh window.
		r.redis.Expire(ctx, key, window)
		ttl = window
	}
	return count, ttl, nil
}

// MemoryCounter is a process-local Counter
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (m *MemoryCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &memoryWindow{expires: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.expires.Sub(now), nil
}

type RateLimiter struct {
	counter Counter
}

func NewRateLimiter(counter Counter) *RateLimiter {
	return &RateLimiter{counter: counter}
}

// Limit creates a rate limiting middleware keyed by caller
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		count, ttl, err := rl.counter.Hit(c.UserContext(), key, window)
		if err != nil {
			// Fail open.
			slog.Warn("rate limit check failed", "key", key, "error", err)
			return c.Next()
		}

		if count > int64(maxRequests) {
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// GenerateLimit guards provider-backed generation routes
func (rl *RateLimiter) GenerateLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("generate", maxPerMin, time.Minute)
}

// RenderLimit guards render submission
func (rl *RateLimiter) RenderLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("render", maxPerHour, time.Hour)
}

// PublishLimit guards publication
func (rl *RateLimiter) PublishLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("publish", maxPerHour, time.Hour)
}
