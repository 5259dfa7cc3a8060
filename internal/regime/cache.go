package regime

import "sync"

// MemoryCache is an in-process regime cache keyed by symbol
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Result
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Result),
	}
}

// Get retrieves the cached regime for a symbol
func (mc *MemoryCache) Get(symbol string) (*Result, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result, ok := mc.entries[symbol]
	return result, ok
}

// Set stores the regime for a symbol
func (mc *MemoryCache) Set(symbol string, result *Result) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries[symbol] = result
}

// Clear removes all cached entries
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*Result)
}
