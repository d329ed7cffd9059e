package repository

import (
	"context"
	"sync/atomic"
	"time"

	"bookbite/internal/domain"
	"bookbite/internal/models"

	"github.com/rs/zerolog"
)

const retryPrimaryAfter = time.Minute

// FailoverSnapshotCache uses primary until it fails, then serves from fallback
// and retries primary once a minute.
type FailoverSnapshotCache struct {
	primary   domain.SnapshotCache
	fallback  domain.SnapshotCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverSnapshotCache(primary, fallback domain.SnapshotCache, logger *zerolog.Logger) *FailoverSnapshotCache {
	return &FailoverSnapshotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *FailoverSnapshotCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary snapshot cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(c.now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (c *FailoverSnapshotCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	return c.now().Sub(time.Unix(0, c.lastCheck.Load())) > retryPrimaryAfter
}

func (c *FailoverSnapshotCache) recovered() {
	if c.isDown.CompareAndSwap(true, false) {
		c.logger.Info().Msg("primary snapshot cache recovered")
	}
}

func (c *FailoverSnapshotCache) GetSnapshot(ctx context.Context, tableID int64, date string) ([]models.Reservation, bool, error) {
	if c.usePrimary() {
		list, ok, err := c.primary.GetSnapshot(ctx, tableID, date)
		if err == nil {
			c.recovered()
			return list, ok, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetSnapshot(ctx, tableID, date)
}

func (c *FailoverSnapshotCache) SetSnapshot(ctx context.Context, tableID int64, date string, list []models.Reservation) error {
	if c.usePrimary() {
		err := c.primary.SetSnapshot(ctx, tableID, date, list)
		if err == nil {
			c.recovered()
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.SetSnapshot(ctx, tableID, date, list)
}

// Invalidate always clears fallback as well.
func (c *FailoverSnapshotCache) Invalidate(ctx context.Context, tableID int64, date string) error {
	fallbackErr := c.fallback.Invalidate(ctx, tableID, date)
	if c.usePrimary() {
		err := c.primary.Invalidate(ctx, tableID, date)
		if err == nil {
			c.recovered()
			return fallbackErr
		}
		c.markDown(err)
	}
	return fallbackErr
}
