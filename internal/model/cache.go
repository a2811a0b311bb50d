/**
 * Adapter Cache
 *
 * Caches loaded adapters by (model name, device) so repeated pipeline runs
 * reuse them instead of paying the load cost again. The cache is an owned
 * object, not a package global; the orchestrator holds one and clears it
 * on shutdown, which closes every adapter and releases whatever the
 * backend keeps resident for them.
 */

package model

import (
	"sync"

	"github.com/formlens/docextract/internal/logging"
)

// Cache stores adapters keyed by model name and device.
type Cache struct {
	mu       sync.Mutex
	adapters map[string]Adapter
	logger   *logging.Logger
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		adapters: make(map[string]Adapter),
		logger:   logging.NewLogger("ModelCache"),
	}
}

func cacheKey(name, device string) string {
	return name + "|" + device
}

// GetOrLoad returns the cached adapter for (name, device), calling load to
// build it on first use. Loads are serialized, so concurrent callers never
// build the same adapter twice.
func (c *Cache) GetOrLoad(name, device string, load func() (Adapter, error)) (Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(name, device)
	if adapter, ok := c.adapters[key]; ok {
		return adapter, nil
	}

	adapter, err := load()
	if err != nil {
		return nil, err
	}

	c.adapters[key] = adapter
	c.logger.Info("Loaded model adapter", "model", name, "device", device)
	return adapter, nil
}

// Clear closes and evicts every cached adapter.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, adapter := range c.adapters {
		if err := adapter.Close(); err != nil {
			c.logger.Warn("Failed to close adapter", "key", key, "error", err)
		}
		delete(c.adapters, key)
	}
}

// Len returns the number of cached adapters.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.adapters)
}
