package controller

import (
	"maps"
	"sync"

	"github.com/brianhealey/lyngdorf-go/internal/models"
)

// cache holds the last value observed for every field. The values map is
// copy-on-write: a map that has been handed out in a Snapshot is never
// mutated again, so snapshots need no locking.
type cache struct {
	mu     sync.RWMutex
	values map[models.Field]models.Value
	rev    uint64
}

func newCache() *cache {
	return &cache{values: make(map[models.Field]models.Value)}
}

// apply records a value observed from the device. Every call bumps the
// revision; changed reports whether the value differs from the previous one
// (or the field was unknown), which is what decides notification.
func (c *cache) apply(f models.Field, v models.Value) (changed bool, snap models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, known := c.values[f]
	changed = !known || old != v
	c.rev++
	if changed {
		next := maps.Clone(c.values)
		next[f] = v
		c.values = next
	}
	return changed, models.NewSnapshot(c.rev, c.values)
}

func (c *cache) snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.NewSnapshot(c.rev, c.values)
}
