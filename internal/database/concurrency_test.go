package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"bookbite/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentConfirmation(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	seedRestaurant(t, db)

	ctx := context.Background()

	const numGoroutines = 10
	ids := make([]int64, numGoroutines)
	for i := range ids {
		r := newReservation(5, "2024-06-01", "19:00", "21:00")
		require.NoError(t, db.CreateReservationWithLock(ctx, r))
		ids[i] = r.ID
	}

	var wg sync.WaitGroup
	results := make(chan error, numGoroutines)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			results <- db.UpdateReservationStatusWithVersion(ctx, id, 1, models.StatusConfirmed)
		}(id)
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, ErrSlotTaken), "unexpected error: %v", err)
	}

	// only one of the overlapping requests may be confirmed
	assert.Equal(t, 1, successCount)

	list, err := db.ListReservationsForTable(ctx, 5, "2024-06-01")
	require.NoError(t, err)
	confirmed := 0
	for _, r := range list {
		if r.Status == models.StatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
}
