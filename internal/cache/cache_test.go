package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"patient_arrivals/internal/config"
	"patient_arrivals/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisCache(client, time.Hour)
}

func sampleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Hourly: []model.BucketCount{
			{BucketStart: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Count: 2},
		},
		Daily: []model.BucketCount{
			{BucketStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Count: 2},
		},
		Summary: model.Summary{
			TotalPatients:    2,
			BusiestHour:      "2024-01-01 10:00:00",
			BusiestHourCount: 2,
			BusiestDay:       "2024-01-01",
			BusiestDayCount:  2,
			AverageDaily:     2,
		},
	}
}

func TestKey(t *testing.T) {
	a := Key([]byte("timestamp,patient_id\n"))
	b := Key([]byte("timestamp,patient_id\n"))
	c := Key([]byte("timestamp,patient_id\r\n"))
	d := Key([]byte("timestamp,patient_id\n"), "ts", "id")

	assert.True(t, strings.HasPrefix(a, "arrivals:summary:"))
	assert.Len(t, strings.TrimPrefix(a, "arrivals:summary:"), 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Equal(t, d, Key([]byte("timestamp,patient_id\n"), "ts", "id"))
}

func TestRedisCache_Miss(t *testing.T) {
	_, c := setupTestRedis(t)

	got, err := c.Get(context.Background(), Key([]byte("nothing")))

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	key := Key([]byte("input"))

	require.NoError(t, c.Set(ctx, key, sampleResult()))

	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleResult().Summary, got.Summary)
	require.Len(t, got.Hourly, 1)
	assert.True(t, got.Hourly[0].BucketStart.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestRedisCache_Expired(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	key := Key([]byte("input"))

	require.NoError(t, c.Set(ctx, key, sampleResult()))
	mr.FastForward(2 * time.Hour)

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr, c := setupTestRedis(t)
	key := Key([]byte("input"))
	require.NoError(t, mr.Set(key, "{not json"))

	_, err := c.Get(context.Background(), key)

	assert.ErrorContains(t, err, "failed to decode cached result")
}

func TestNew_Disabled(t *testing.T) {
	c, closeFn, err := New(context.Background(), config.CacheConfig{})

	require.NoError(t, err)
	assert.IsType(t, NopCache{}, c)
	assert.NoError(t, closeFn())

	got, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, closeFn, err := New(context.Background(), config.CacheConfig{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &RedisCache{}, c)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := New(context.Background(), config.CacheConfig{Addr: addr})

	assert.ErrorContains(t, err, "failed to connect to redis")
}
