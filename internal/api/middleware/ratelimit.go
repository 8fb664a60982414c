package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/estatekit/media-crawler/pkg/logger"
)

// RateLimitConfig holds per-endpoint request limits. Crawls are priced far
// below everything else because each one ties up a browser.
type RateLimitConfig struct {
	Crawls              Limit
	Profiles            Limit
	Assets              Limit
	Default             Limit
	GracefulDegradation bool // serve unlimited when the store is down
}

// Limit defines rate limit parameters.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimitConfig returns the standard limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Crawls: Limit{
			Requests: 10,
			Window:   1 * time.Minute,
		},
		Profiles: Limit{
			Requests: 60,
			Window:   1 * time.Minute,
		},
		Assets: Limit{
			Requests: 100,
			Window:   1 * time.Minute,
		},
		Default: Limit{
			Requests: 100,
			Window:   1 * time.Minute,
		},
		GracefulDegradation: true,
	}
}

// RateLimitStore defines the interface for rate limit counters.
type RateLimitStore interface {
	// Increment bumps the counter for a key and returns the new count,
	// creating the key with the window as its expiration when absent.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	IsHealthy() bool
}

// MemoryRateLimitStore implements RateLimitStore in memory. Suitable for
// single-instance deployments.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryRateLimitStore creates an in-memory rate limit store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	store := &MemoryRateLimitStore{
		entries: make(map[string]*rateLimitEntry),
	}
	go store.cleanup()
	return store
}

func (s *MemoryRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, exists := s.entries[key]

	if !exists || now.After(entry.expiresAt) {
		s.entries[key] = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

func (s *MemoryRateLimitStore) IsHealthy() bool {
	return true
}

func (s *MemoryRateLimitStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for key, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisRateLimitStore implements RateLimitStore on Redis for multi-instance
// deployments.
type RedisRateLimitStore struct {
	client  RedisCounter
	prefix  string
	healthy bool
	log     *logger.Logger
}

// RedisCounter defines the Redis operations rate limiting needs.
type RedisCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Ping(ctx context.Context) error
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store. A failed
// ping marks the store unhealthy instead of failing startup.
func NewRedisRateLimitStore(client RedisCounter, prefix string, log *logger.Logger) *RedisRateLimitStore {
	store := &RedisRateLimitStore{
		client:  client,
		prefix:  prefix,
		healthy: true,
		log:     log.WithComponent("rate_limit_store"),
	}

	if client == nil {
		store.healthy = false
		return store
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		store.log.Warn("Redis unavailable for rate limiting", "error", err)
		store.healthy = false
	}

	return store
}

func (s *RedisRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !s.IsHealthy() {
		return 0, fmt.Errorf("redis not available")
	}

	fullKey := fmt.Sprintf("%s:%s", s.prefix, key)
	count, err := s.client.Incr(ctx, fullKey)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window); err != nil {
			s.log.Warn("failed to set rate limit expiration", "key", fullKey, "error", err)
		}
	}

	return count, nil
}

func (s *RedisRateLimitStore) IsHealthy() bool {
	return s.healthy && s.client != nil
}

// RateLimiter provides per-client request limiting middleware.
type RateLimiter struct {
	store  RateLimitStore
	config RateLimitConfig
	log    *logger.Logger
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(store RateLimitStore, config RateLimitConfig, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		config: config,
		log:    log.WithComponent("rate_limiter"),
	}
}

// Middleware returns a limiting middleware for the named limit class.
func (rl *RateLimiter) Middleware(limitType string) func(next http.Handler) http.Handler {
	limit := rl.getLimit(limitType)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			clientID := rl.getClientID(r)
			key := fmt.Sprintf("%s:%s", limitType, clientID)

			if !rl.store.IsHealthy() {
				if rl.config.GracefulDegradation {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			count, err := rl.store.Increment(ctx, key, limit.Window)
			if err != nil {
				rl.log.Error("rate limit check failed", "error", err, "key", key)
				if rl.config.GracefulDegradation {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			remaining := limit.Requests - int(count)
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit.Requests))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", int(limit.Window.Seconds())))

			if count > int64(limit.Requests) {
				rl.log.Warn("rate limit exceeded",
					"client_id", clientID,
					"limit_type", limitType,
					"count", count,
					"limit", limit.Requests,
				)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limit.Window.Seconds())))
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) getLimit(limitType string) Limit {
	switch limitType {
	case "crawl":
		return rl.config.Crawls
	case "profile":
		return rl.config.Profiles
	case "assets":
		return rl.config.Assets
	default:
		return rl.config.Default
	}
}

// getClientID extracts a client identifier, preferring proxy headers over
// the socket address.
func (rl *RateLimiter) getClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
