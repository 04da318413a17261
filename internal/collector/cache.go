package collector

import (
	"sync"
	"time"

	"github.com/quotascope/quotascope/internal/metrics"
)

// snapshot is one completed collection cycle held for reuse.
type snapshot struct {
	records  []metrics.Record
	takenAt  time.Time
	duration time.Duration
}

// cache holds the single most recent snapshot. Concurrent scrapes within the
// TTL are served from it instead of hitting the upstream API again.
type cache struct {
	mu   sync.RWMutex
	snap *snapshot
}

// fresh returns the cached records if a snapshot exists and is younger than
// ttl. A ttl of zero disables reuse entirely.
func (c *cache) fresh(now time.Time, ttl time.Duration) ([]metrics.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || ttl <= 0 {
		return nil, false
	}
	if now.Sub(c.snap.takenAt) >= ttl {
		return nil, false
	}
	return c.snap.records, true
}

// store replaces the snapshot with a newly collected one.
func (c *cache) store(records []metrics.Record, at time.Time, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &snapshot{records: records, takenAt: at, duration: duration}
}

// clear drops the snapshot so the next scrape collects fresh data.
func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
}

// age reports how old the current snapshot is. ok is false when the cache is
// empty.
func (c *cache) age(now time.Time) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return now.Sub(c.snap.takenAt), true
}

// size returns the number of cached records, zero when empty.
func (c *cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0
	}
	return len(c.snap.records)
}

// collectionDuration returns how long the cached cycle took to collect.
func (c *cache) collectionDuration() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return c.snap.duration, true
}
