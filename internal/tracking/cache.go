// Package tracking decides, per request, whether tracking is served
// live from the courier or from the local snapshot cache.
package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/swiftcart/fulfillment/pkg/courier"
)

// Snapshot is the last known tracking state for an AWB.
type Snapshot struct {
	AWBNo         string                 `json:"awbNo"`
	Status        courier.ShippingStatus `json:"status"`
	CarrierStatus string                 `json:"carrierStatus"`
	Description   string                 `json:"description"`
	City          string                 `json:"city"`
	State         string                 `json:"state"`
	LastSyncedAt  time.Time              `json:"lastSyncedAt"`
}

// Age returns how long ago the snapshot was synced.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LastSyncedAt)
}

// Cache stores tracking snapshots keyed by AWB. Entries expire softly:
// a stale entry is never served as fresh but stays available as a
// degraded fallback when the courier is unreachable.
type Cache interface {
	// Get returns the snapshot for an AWB regardless of age, or nil.
	Get(ctx context.Context, awbNo string) (*Snapshot, error)

	// Put overwrites the snapshot for an AWB.
	Put(ctx context.Context, snapshot *Snapshot) error
}

// MemoryCache is an in-process Cache for tests and single-node setups.
type MemoryCache struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{snapshots: make(map[string]Snapshot)}
}

func (c *MemoryCache) Get(ctx context.Context, awbNo string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.snapshots[awbNo]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func (c *MemoryCache) Put(ctx context.Context, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshot.AWBNo] = *snapshot
	return nil
}

var _ Cache = (*MemoryCache)(nil)
