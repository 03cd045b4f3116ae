package mcpbridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mj1618/uitransfer/internal/model"
)

// Source resolves a snapshot by name.
type Source interface {
	Snapshot(ctx context.Context, name string) (*model.Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, name string) (*model.Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context, name string) (*model.Snapshot, error) {
	return f(ctx, name)
}

// DirSource loads YAML snapshot files from one directory. Names are
// resolved inside Dir; a name without an extension gets ".yaml".
type DirSource struct {
	Dir string
}

func (d DirSource) Snapshot(_ context.Context, name string) (*model.Snapshot, error) {
	if name == "" {
		return nil, fmt.Errorf("snapshot name is required")
	}
	clean := filepath.Clean(string(filepath.Separator) + name)
	if filepath.Ext(clean) == "" {
		clean += ".yaml"
	}
	path := filepath.Join(d.Dir, clean)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", name, err)
	}
	return model.LoadSnapshot(path)
}

type cacheEntry struct {
	snap      *model.Snapshot
	timestamp time.Time
}

// SnapshotCache keeps loaded snapshots for a TTL so repeated transfers of
// the same name share one tree. Snapshots dropped by Invalidate or
// InvalidateAll are passed to onEvict; TTL expiry is not an eviction.
type SnapshotCache struct {
	mu      sync.Mutex
	source  Source
	entries map[string]cacheEntry
	ttl     time.Duration
	onEvict func(*model.Snapshot)
}

// NewSnapshotCache wraps source. A ttl of 0 disables caching.
func NewSnapshotCache(source Source, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		source:  source,
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Snapshot returns the cached snapshot for name if within TTL, otherwise
// loads it fresh.
func (c *SnapshotCache) Snapshot(ctx context.Context, name string) (*model.Snapshot, error) {
	if c.ttl == 0 {
		return c.source.Snapshot(ctx, name)
	}

	c.mu.Lock()
	entry, ok := c.entries[name]
	if ok && time.Since(entry.timestamp) < c.ttl {
		c.mu.Unlock()
		return entry.snap, nil
	}
	c.mu.Unlock()

	snap, err := c.source.Snapshot(ctx, name)
	if err != nil {
		return nil, err
	}

	// An expired entry is only replaced. Transfers already running on the
	// old snapshot keep it alive until they finish.
	c.mu.Lock()
	c.entries[name] = cacheEntry{snap: snap, timestamp: time.Now()}
	c.mu.Unlock()
	return snap, nil
}

// Invalidate removes the entry for name.
func (c *SnapshotCache) Invalidate(name string) {
	c.mu.Lock()
	entry, ok := c.entries[name]
	delete(c.entries, name)
	c.mu.Unlock()
	if ok {
		c.evict(entry.snap)
	}
}

// InvalidateAll clears the entire cache.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	for _, e := range entries {
		c.evict(e.snap)
	}
}

func (c *SnapshotCache) evict(snap *model.Snapshot) {
	if c.onEvict != nil {
		c.onEvict(snap)
	}
}
