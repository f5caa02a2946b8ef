// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package cache provides the bounded in-memory dedupe store behind the
// fusion engine's suppression check.
//
// The store is lock-striped: keys hash (FNV-1a) onto a power-of-two
// number of shards so unrelated locations never serialize on one mutex.
// Memory is bounded two ways: a background janitor sweeps entries past
// their maximum age, and each shard evicts its oldest entry when full.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/fusion"
	"github.com/rcalloway/harbinger/internal/logging"
)

const (
	defaultShardCount       = 16
	defaultPerShardCapacity = 1024
	defaultSweepInterval    = 5 * time.Minute
	defaultMaxEntryAge      = time.Hour
)

// Options configures a DedupeCache. Zero values take the defaults.
type Options struct {
	// ShardCount is rounded up to the next power of two.
	ShardCount int

	// PerShardCapacity bounds each shard; the oldest entry is evicted
	// when an insert would exceed it.
	PerShardCapacity int

	// SweepInterval is how often the janitor scans for stale entries.
	SweepInterval time.Duration

	// MaxEntryAge is the age past which the janitor removes an entry.
	// Keep it at or above twice the dedupe window so sweeps never race
	// a live suppression check.
	MaxEntryAge time.Duration

	// Clock drives entry timestamps and the janitor. Defaults to the
	// wall clock.
	Clock clockwork.Clock
}

type dedupeEntry struct {
	seenAt time.Time
	score  float64
}

type dedupeShard struct {
	mu      sync.Mutex
	entries map[string]dedupeEntry
}

// DedupeCache is the striped dedupe store. Close must be called to stop
// the janitor.
type DedupeCache struct {
	shards    []*dedupeShard
	mask      uint64
	capacity  int
	maxAge    time.Duration
	clock     clockwork.Clock
	evictions atomic.Int64
	sweeps    atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
}

var _ fusion.DedupeStore = (*DedupeCache)(nil)

// Stats reports cache occupancy and churn for metrics scraping.
type Stats struct {
	Size      int   `json:"size"`
	Evictions int64 `json:"evictions"`
	Sweeps    int64 `json:"sweeps"`
}

// NewDedupeCache creates a dedupe cache and starts its janitor.
func NewDedupeCache(opts Options) *DedupeCache {
	shardCount := nextPowerOfTwo(opts.ShardCount, defaultShardCount)
	capacity := opts.PerShardCapacity
	if capacity <= 0 {
		capacity = defaultPerShardCapacity
	}
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	maxAge := opts.MaxEntryAge
	if maxAge <= 0 {
		maxAge = defaultMaxEntryAge
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	shards := make([]*dedupeShard, shardCount)
	for i := range shards {
		shards[i] = &dedupeShard{entries: make(map[string]dedupeEntry)}
	}

	c := &DedupeCache{
		shards:   shards,
		mask:     uint64(shardCount - 1),
		capacity: capacity,
		maxAge:   maxAge,
		clock:    clock,
		stop:     make(chan struct{}),
	}

	go c.sweepLoop(sweepInterval)

	return c
}

// CheckAndSet implements fusion.DedupeStore. Atomic per key: the lookup
// and the overwrite happen under the shard lock, so concurrent calls
// for one key admit exactly one non-duplicate.
func (c *DedupeCache) CheckAndSet(key string, score float64, window time.Duration, delta float64) bool {
	now := c.clock.Now()
	shard := c.shardFor(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry, ok := shard.entries[key]; ok {
		if now.Sub(entry.seenAt) < window && abs(score-entry.score) < delta {
			// Duplicate: leave the stored entry untouched so the window
			// anchors on the alert that actually fired.
			return true
		}
	}

	if _, exists := shard.entries[key]; !exists && len(shard.entries) >= c.capacity {
		c.evictOldestLocked(shard)
	}
	shard.entries[key] = dedupeEntry{seenAt: now, score: score}
	return false
}

// Stats returns current occupancy and churn counters.
func (c *DedupeCache) Stats() Stats {
	size := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		size += len(shard.entries)
		shard.mu.Unlock()
	}
	return Stats{
		Size:      size,
		Evictions: c.evictions.Load(),
		Sweeps:    c.sweeps.Load(),
	}
}

// Close stops the janitor. Safe to call more than once.
func (c *DedupeCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *DedupeCache) shardFor(key string) *dedupeShard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum64()&c.mask]
}

// evictOldestLocked removes the oldest entry in a full shard. Caller
// holds the shard lock.
func (c *DedupeCache) evictOldestLocked(shard *dedupeShard) {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range shard.entries {
		if !found || e.seenAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.seenAt
			found = true
		}
	}
	if found {
		delete(shard.entries, oldestKey)
		c.evictions.Add(1)
	}
}

func (c *DedupeCache) sweepLoop(interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			removed := c.sweep()
			c.sweeps.Add(1)
			if removed > 0 {
				logging.Debug().
					Int("removed", removed).
					Msg("Dedupe cache sweep removed stale entries")
			}
		}
	}
}

// sweep removes entries older than the maximum age. Returns the number
// removed.
func (c *DedupeCache) sweep() int {
	cutoff := c.clock.Now().Add(-c.maxAge)
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for k, e := range shard.entries {
			if e.seenAt.Before(cutoff) {
				delete(shard.entries, k)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

func nextPowerOfTwo(n, def int) int {
	if n <= 0 {
		return def
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
