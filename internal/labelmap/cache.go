package labelmap

import (
	"sync"

	"github.com/ironsheep/plate-text-mcp/internal/detection"
)

type cacheKey struct {
	path           string
	maxNumClasses  int
	useDisplayName bool
}

// Cache memoizes parsed label maps so repeated tool calls do not re-read
// the file.
//
// Entries are keyed by the exact path string and the parse options. Cache is
// safe for concurrent use. Returned indexes are shared between callers and
// must be treated as read-only.
type Cache struct {
	mu      sync.RWMutex
	indexes map[cacheKey]detection.CategoryIndex
}

// NewCache creates an empty label map cache.
func NewCache() *Cache {
	return &Cache{
		indexes: make(map[cacheKey]detection.CategoryIndex),
	}
}

// Load returns the cached index for path or loads it from disk.
func (c *Cache) Load(path string, maxNumClasses int, useDisplayName bool) (detection.CategoryIndex, error) {
	key := cacheKey{path: path, maxNumClasses: maxNumClasses, useDisplayName: useDisplayName}

	c.mu.RLock()
	if idx, ok := c.indexes[key]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	idx, err := Load(path, maxNumClasses, useDisplayName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.indexes[key] = idx
	c.mu.Unlock()

	return idx, nil
}

// Evict drops every cached index loaded from path.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	for key := range c.indexes {
		if key.path == path {
			delete(c.indexes, key)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indexes)
}
