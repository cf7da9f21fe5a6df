package store

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache with mutex-protected maps. It backs tests
// and the zero-configuration development mode; nothing survives a restart.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]ItemEntry
	pairs    map[string]PairEntry
	exposure map[string]ExposureEntry
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:    make(map[string]ItemEntry),
		pairs:    make(map[string]PairEntry),
		exposure: make(map[string]ExposureEntry),
	}
}

func pairMapKey(pairKey, calcVersion string) string {
	return pairKey + "\x00" + calcVersion
}

func (c *MemoryCache) GetItem(_ context.Context, normalized string) (*ItemEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.items[normalized]
	if !ok {
		return nil, nil
	}
	out := entry
	return &out, nil
}

func (c *MemoryCache) PutItem(_ context.Context, entry *ItemEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[entry.Normalized] = *entry
	return nil
}

func (c *MemoryCache) PurgeStaleNegatives(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for key, entry := range c.items {
		if entry.HasNegative() && entry.UpdatedAt.Before(cutoff) {
			delete(c.items, key)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) GetPair(_ context.Context, pairKey, calcVersion string) (*PairEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.pairs[pairMapKey(pairKey, calcVersion)]
	if !ok {
		return nil, nil
	}
	out := entry
	return &out, nil
}

func (c *MemoryCache) PutPair(_ context.Context, entry *PairEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs[pairMapKey(entry.PairKey, entry.CalcVersion)] = *entry
	return nil
}

func (c *MemoryCache) PurgeVersionsOtherThan(_ context.Context, calcVersion string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for key, entry := range c.pairs {
		if entry.CalcVersion != calcVersion {
			delete(c.pairs, key)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) GetExposure(_ context.Context, normalized string) (*ExposureEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.exposure[normalized]
	if !ok {
		return nil, nil
	}
	out := entry
	return &out, nil
}

func (c *MemoryCache) PutExposure(_ context.Context, entry *ExposureEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exposure[entry.Normalized] = *entry
	return nil
}

// Close is a no-op for the memory backend.
func (c *MemoryCache) Close() error { return nil }

// MemoryUsageLog collects usage rows in memory for tests.
type MemoryUsageLog struct {
	mu      sync.Mutex
	entries []UsageEntry
}

// NewMemoryUsageLog returns an empty in-memory usage log.
func NewMemoryUsageLog() *MemoryUsageLog {
	return &MemoryUsageLog{}
}

func (u *MemoryUsageLog) Append(_ context.Context, entry *UsageEntry) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = append(u.entries, *entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (u *MemoryUsageLog) Entries() []UsageEntry {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UsageEntry, len(u.entries))
	copy(out, u.entries)
	return out
}

func (u *MemoryUsageLog) Close() error { return nil }
