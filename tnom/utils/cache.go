// Package utils holds small standalone helpers shared by the monitor
// components that don't deserve their own top-level package.
package utils

import (
	"sync"
	"time"
)

// EpochRecordCache remembers the last value a refresh produced and when
// it was produced. MetricsEndpoint uses it to decide whether a Prometheus
// scrape can reuse the last read of EpochStore or must trigger a fresh
// one, without handing callers a generic key-value store to misuse.
type EpochRecordCache[T any] struct {
	mu          sync.Mutex
	value       T
	have        bool
	refreshedAt time.Time
}

// NewEpochRecordCache creates an empty cache, initially stale.
func NewEpochRecordCache[T any]() *EpochRecordCache[T] {
	return &EpochRecordCache[T]{}
}

// Store records v as the latest snapshot, timestamped now.
func (c *EpochRecordCache[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.have = true
	c.refreshedAt = time.Now()
}

// Stale reports whether the cached snapshot is missing or older than
// maxAge. A zero-value maxAge means always stale.
func (c *EpochRecordCache[T]) Stale(maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.have {
		return true
	}
	return time.Since(c.refreshedAt) >= maxAge
}

// Load returns the cached snapshot and whether one has ever been stored.
func (c *EpochRecordCache[T]) Load() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.have
}
