package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookbite/internal/models"
)

type snapshotEntry struct {
	list      []models.Reservation
	expiresAt time.Time
}

// MemorySnapshotCache keeps reservation snapshots in process memory.
type MemorySnapshotCache struct {
	snapshots sync.Map
	ttl       time.Duration
	now       func() time.Time
}

func NewMemorySnapshotCache(ttl time.Duration) *MemorySnapshotCache {
	return &MemorySnapshotCache{
		ttl: ttl,
		now: time.Now,
	}
}

func snapshotKey(tableID int64, date string) string {
	return fmt.Sprintf("%d:%s", tableID, date)
}

func (c *MemorySnapshotCache) GetSnapshot(ctx context.Context, tableID int64, date string) ([]models.Reservation, bool, error) {
	key := snapshotKey(tableID, date)
	val, ok := c.snapshots.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*snapshotEntry)
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.snapshots.CompareAndDelete(key, val)
		return nil, false, nil
	}
	return append([]models.Reservation(nil), entry.list...), true, nil
}

func (c *MemorySnapshotCache) SetSnapshot(ctx context.Context, tableID int64, date string, list []models.Reservation) error {
	c.snapshots.Store(snapshotKey(tableID, date), &snapshotEntry{
		list:      append([]models.Reservation(nil), list...),
		expiresAt: c.now().Add(c.ttl),
	})
	return nil
}

func (c *MemorySnapshotCache) Invalidate(ctx context.Context, tableID int64, date string) error {
	c.snapshots.Delete(snapshotKey(tableID, date))
	return nil
}
