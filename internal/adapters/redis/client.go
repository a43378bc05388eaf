package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/adapters/config"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Client wraps a RedLock manager for distributed locking plus a standard
// Redis client for caching computed aggregates
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	cacheTTL    time.Duration
}

// New creates new Redis client with RedLock support and caching
func New(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lockManager, err := redlock.NewRedLock(ctx, []string{addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	cacheClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cacheClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return &Client{
		lockManager: lockManager,
		cache:       cacheClient,
		cacheTTL:    cfg.CacheTTL,
	}, nil
}

// Close closes redis connections
func (c *Client) Close() error {
	if c.cache != nil {
		logger.Info("closing redis client")
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}
	return nil
}

// Health checks redis health by acquiring and releasing a probe lock
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	expiry, err := c.lockManager.Lock(ctx, "health:check", time.Second)
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if expiry <= 0 {
		return fmt.Errorf("redis health check failed: invalid expiry")
	}
	_ = c.lockManager.UnLock(ctx, "health:check")

	return nil
}

// cacheKey namespaces and hashes an arbitrary raw key
func cacheKey(namespace, raw string) string {
	digest := sha256.Sum256([]byte(raw))
	return namespace + ":" + hex.EncodeToString(digest[:])
}

// GetJSON loads a cached value into dest. Returns false on miss; cache
// errors are reported as misses so callers recompute instead of failing.
func (c *Client) GetJSON(ctx context.Context, namespace, rawKey string, dest interface{}) bool {
	cached, err := c.cache.Get(ctx, cacheKey(namespace, rawKey)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Error("cache get error", zap.String("namespace", namespace), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached), dest); err != nil {
		logger.Error("cache decode error", zap.String("namespace", namespace), zap.Error(err))
		return false
	}
	logger.Debug("cache hit", zap.String("namespace", namespace))
	return true
}

// SetJSON stores a value with the configured TTL
func (c *Client) SetJSON(ctx context.Context, namespace, rawKey string, value interface{}) error {
	serialized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if err := c.cache.Set(ctx, cacheKey(namespace, rawKey), serialized, c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to store cache value: %w", err)
	}
	return nil
}
