package repository

import (
	"context"
	"testing"
	"time"

	"bookbite/internal/config"
	"bookbite/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSnapshotCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	cache := NewRedisSnapshotCache(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	list := []models.Reservation{{ID: 1, TableID: 5, Date: "2024-06-01", StartTime: "10:00", EndTime: "11:30", Status: models.StatusConfirmed, Version: 2}}

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 5, "2024-06-01", list))
		assert.True(t, s.Exists("bookbite:snapshot:5:2024-06-01"))

		got, ok, err := cache.GetSnapshot(ctx, 5, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, list[0].StartTime, got[0].StartTime)
		assert.Equal(t, models.StatusConfirmed, got[0].Status)
	})

	t.Run("EmptyListIsAHit", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 6, "2024-06-01", nil))
		got, ok, err := cache.GetSnapshot(ctx, 6, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := cache.GetSnapshot(ctx, 7, "2024-06-01")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TTL", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 8, "2024-06-01", list))
		s.FastForward(2 * time.Minute)
		_, ok, err := cache.GetSnapshot(ctx, 8, "2024-06-01")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 5, "2024-06-02", list))
		require.NoError(t, cache.Invalidate(ctx, 5, "2024-06-02"))
		_, ok, _ := cache.GetSnapshot(ctx, 5, "2024-06-02")
		assert.False(t, ok)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		require.NoError(t, s.Set("bookbite:snapshot:9:2024-06-01", "{not json"))
		_, _, err := cache.GetSnapshot(ctx, 9, "2024-06-01")
		assert.Error(t, err)
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		_, _, err := NewRedisSnapshotCache(down, time.Minute).GetSnapshot(ctx, 5, "2024-06-01")
		assert.Error(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilCache := NewRedisSnapshotCache(nil, time.Minute)
		_, _, err := nilCache.GetSnapshot(ctx, 1, "2024-06-01")
		assert.Error(t, err)
		assert.Error(t, nilCache.SetSnapshot(ctx, 1, "2024-06-01", nil))
		assert.Error(t, nilCache.Invalidate(ctx, 1, "2024-06-01"))
	})
}
