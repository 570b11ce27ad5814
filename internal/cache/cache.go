package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"patient_arrivals/internal/config"
	"patient_arrivals/internal/model"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "arrivals:summary:"

// SummaryCache stores analysis results keyed by the content of the input file
type SummaryCache interface {
	Get(ctx context.Context, key string) (*model.AnalysisResult, error)
	Set(ctx context.Context, key string, result *model.AnalysisResult) error
}

// Key derives the cache key for an input file's raw bytes. Extra parts,
// such as the column names and sheet the file is read with, are hashed after it.
func Key(content []byte, parts ...string) string {
	h := sha256.New()
	h.Write(content)
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// RedisCache is a SummaryCache backed by go-redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns (nil, nil) on a miss
func (c *RedisCache) Get(ctx context.Context, key string) (*model.AnalysisResult, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *model.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache never hits
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*model.AnalysisResult, error) { return nil, nil }

func (NopCache) Set(context.Context, string, *model.AnalysisResult) error { return nil }

// New connects to the configured Redis server, or returns a NopCache when
// no address is set. The returned close func is never nil.
func New(ctx context.Context, cfg config.CacheConfig) (SummaryCache, func() error, error) {
	if cfg.Addr == "" {
		return NopCache{}, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	c := NewRedisCache(client, cfg.TTL)
	return c, c.Close, nil
}
