// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/aiteam0/rag-lab/pkg/store"
)

// MetadataCache holds the live store metadata snapshot the subtask executor
// and dynamic filter generator validate against, refreshed at most once per
// TTL (default 300s, spec §4.4). Grounded on the teacher's
// pkg/schema/registry.go mutex-guarded map idiom and pkg/schema/resolver.go's
// SchemaCache TTL idiom — unlike SchemaCache, this cache's map is guarded by
// a mutex on every access, not just at refresh, fixing a latent race in the
// teacher's version.
type MetadataCache struct {
	mu        sync.Mutex
	store     store.Store
	ttl       time.Duration
	snapshot  store.MetadataSnapshot
	fetchedAt time.Time
}

// NewMetadataCache returns a cache bound to st with the given TTL. A
// non-positive ttl defaults to 300 seconds.
func NewMetadataCache(st store.Store, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &MetadataCache{store: st, ttl: ttl}
}

// Get returns the cached snapshot, refreshing it from the store if the TTL
// has elapsed. Every call holds the mutex, including across the store call
// during a refresh, so concurrent callers wait for the refresh to finish.
func (c *MetadataCache) Get(ctx context.Context) (store.MetadataSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.fetchedAt) < c.ttl && !c.fetchedAt.IsZero() {
		return c.snapshot, nil
	}

	snap, err := c.store.GetMetadata(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			// serve the stale snapshot rather than fail the subtask on a
			// transient metadata-fetch error
			return c.snapshot, nil
		}
		return store.MetadataSnapshot{}, err
	}

	c.snapshot = snap
	c.fetchedAt = time.Now()
	return c.snapshot, nil
}
