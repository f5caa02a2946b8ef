// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestCache(t *testing.T, opts Options) (*DedupeCache, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	opts.Clock = clock
	c := NewDedupeCache(opts)
	t.Cleanup(c.Close)
	return c, clock
}

func TestCheckAndSetWindow(t *testing.T) {
	c, clock := newTestCache(t, Options{})
	window := 30 * time.Minute

	if c.CheckAndSet("L1|crime", 0.5, window, 0.15) {
		t.Fatal("first call must not suppress")
	}

	// Near-identical score inside the window suppresses.
	if !c.CheckAndSet("L1|crime", 0.55, window, 0.15) {
		t.Error("near-duplicate inside window must suppress")
	}

	// Score delta at or above the threshold does not suppress and
	// overwrites the entry.
	if c.CheckAndSet("L1|crime", 0.65, window, 0.15) {
		t.Error("score delta of 0.15 must not suppress")
	}

	// The overwrite re-anchored the entry at score 0.65.
	if !c.CheckAndSet("L1|crime", 0.7, window, 0.15) {
		t.Error("near-duplicate of overwritten entry must suppress")
	}

	// Past the window the entry no longer suppresses.
	clock.Advance(window + time.Second)
	if c.CheckAndSet("L1|crime", 0.7, window, 0.15) {
		t.Error("entry outside window must not suppress")
	}
}

func TestSuppressionKeepsEntryAnchor(t *testing.T) {
	c, clock := newTestCache(t, Options{})
	window := 30 * time.Minute

	c.CheckAndSet("L1|weather", 0.5, window, 0.15)

	// Suppressed repeats must not refresh the timestamp: the window
	// anchors on the original alert.
	clock.Advance(20 * time.Minute)
	if !c.CheckAndSet("L1|weather", 0.5, window, 0.15) {
		t.Fatal("repeat inside window must suppress")
	}
	clock.Advance(15 * time.Minute)
	// 35 minutes after the original; a refreshed anchor would still
	// suppress here.
	if c.CheckAndSet("L1|weather", 0.5, window, 0.15) {
		t.Error("window must anchor on the original entry, not the suppressed repeat")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	window := 30 * time.Minute

	c.CheckAndSet("L1|crime", 0.5, window, 0.15)
	if c.CheckAndSet("L2|crime", 0.5, window, 0.15) {
		t.Error("different location must not suppress")
	}
	if c.CheckAndSet("L1|fraud", 0.5, window, 0.15) {
		t.Error("different domain must not suppress")
	}
}

func TestConcurrentCheckAndSetAdmitsOne(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	window := 30 * time.Minute

	const goroutines = 64
	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !c.CheckAndSet("L1|crime", 0.5, window, 0.15) {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("admitted = %d, want exactly 1", got)
	}
}

func TestCapacityEviction(t *testing.T) {
	c, _ := newTestCache(t, Options{ShardCount: 1, PerShardCapacity: 4})
	window := 30 * time.Minute

	for i := 0; i < 8; i++ {
		c.CheckAndSet(fmt.Sprintf("L%d|crime", i), 0.5, window, 0.15)
	}

	stats := c.Stats()
	if stats.Size != 4 {
		t.Errorf("Size = %d, want capacity bound 4", stats.Size)
	}
	if stats.Evictions != 4 {
		t.Errorf("Evictions = %d, want 4", stats.Evictions)
	}
}

func TestSweepRemovesStaleEntries(t *testing.T) {
	c, clock := newTestCache(t, Options{
		SweepInterval: time.Minute,
		MaxEntryAge:   time.Hour,
	})
	window := 30 * time.Minute

	c.CheckAndSet("L1|crime", 0.5, window, 0.15)
	c.CheckAndSet("L2|weather", 0.3, window, 0.15)

	clock.Advance(2 * time.Hour)
	// Wait for the janitor to pick up the tick.
	deadline := time.After(2 * time.Second)
	for c.Stats().Size > 0 {
		select {
		case <-deadline:
			t.Fatalf("sweep did not remove stale entries: %+v", c.Stats())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestShardCountRounding(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, defaultShardCount},
		{-3, defaultShardCount},
		{1, 1},
		{3, 4},
		{16, 16},
		{17, 32},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in, defaultShardCount); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
