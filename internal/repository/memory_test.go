package repository

import (
	"context"
	"testing"
	"time"

	"bookbite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshotCache(t *testing.T) {
	cache := NewMemorySnapshotCache(time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	list := []models.Reservation{{ID: 1, TableID: 5, Date: "2024-06-01", StartTime: "10:00", EndTime: "11:00", Status: models.StatusConfirmed}}

	t.Run("Miss", func(t *testing.T) {
		got, ok, err := cache.GetSnapshot(ctx, 5, "2024-06-01")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 5, "2024-06-01", list))
		got, ok, err := cache.GetSnapshot(ctx, 5, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, list, got)

		got[0].Status = models.StatusCancelled
		again, _, _ := cache.GetSnapshot(ctx, 5, "2024-06-01")
		assert.Equal(t, models.StatusConfirmed, again[0].Status, "callers get a copy")
	})

	t.Run("EmptyListIsAHit", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 6, "2024-06-01", nil))
		_, ok, err := cache.GetSnapshot(ctx, 6, "2024-06-01")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, ok, err := cache.GetSnapshot(ctx, 5, "2024-06-01")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.SetSnapshot(ctx, 5, "2024-06-02", list))
		require.NoError(t, cache.Invalidate(ctx, 5, "2024-06-02"))
		_, ok, _ := cache.GetSnapshot(ctx, 5, "2024-06-02")
		assert.False(t, ok)
	})
}
