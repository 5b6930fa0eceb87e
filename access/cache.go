package access

import "sync"

type cacheKey struct {
	contentRef string
	userID     string
	level      Level
}

// decisionCache is an optional side table of resolved access decisions. It
// is rebuilt lazily and invalidated wholesale on every grant write; the
// resolver stays correct without it and never treats it as the authority.
type decisionCache struct {
	mu sync.RWMutex
	m  map[cacheKey]bool
}

func newDecisionCache() *decisionCache {
	return &decisionCache{m: make(map[cacheKey]bool)}
}

func (c *decisionCache) get(k cacheKey) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *decisionCache) put(k cacheKey, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = allowed
}

func (c *decisionCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[cacheKey]bool)
}
