package routing

import "container/list"

// DefaultCacheSize is the default number of routes kept in a Router's
// LRU cache.
const DefaultCacheSize = 200

type cacheKey struct {
	fromID, toID string
}

type cacheEntry struct {
	key  cacheKey
	path []string // node ids, start through end
}

// routeCache is a fixed-capacity LRU cache from (start node id, end
// node id) to the node-id path between them. Real OSM-derived road
// networks see the same start/end pairs repeatedly (commute corridors),
// so caching the computed path avoids re-running the search.
type routeCache struct {
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used

	hits, misses int
}

func newRouteCache(capacity int) *routeCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &routeCache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
	}
}

func (c *routeCache) get(from, to string) ([]string, bool) {
	key := cacheKey{from, to}
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).path, true
}

func (c *routeCache) put(from, to string, path []string) {
	key := cacheKey{from, to}
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).path = path
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	el := c.order.PushFront(&cacheEntry{key: key, path: path})
	c.entries[key] = el
}

// CacheStats reports a router's cache utilization.
type CacheStats struct {
	Size           int
	Capacity       int
	Hits           int
	Misses         int
	HitRatePercent float64
	PathsComputed  int
}

func (c *routeCache) stats(pathsComputed int) CacheStats {
	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return CacheStats{
		Size:           c.order.Len(),
		Capacity:       c.capacity,
		Hits:           c.hits,
		Misses:         c.misses,
		HitRatePercent: hitRate,
		PathsComputed:  pathsComputed,
	}
}
