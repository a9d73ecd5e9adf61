package keys

import "sync"

// Cache memoises derived spending keys by family and index so that repeated
// scans of overlapping index ranges (every block re-probes indices from 0
// up to the watermark plus num_future_keys) do not re-run HD derivation for
// indices already computed.
type Cache struct {
	mu         sync.RWMutex
	generation map[uint64]SpendingKey
	symmetric  map[uint64]SpendingKey
}

func NewCache() *Cache {
	return &Cache{
		generation: make(map[uint64]SpendingKey),
		symmetric:  make(map[uint64]SpendingKey),
	}
}

func (c *Cache) get(family Family, index uint64) (SpendingKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var m map[uint64]SpendingKey
	if family == FamilyGeneration {
		m = c.generation
	} else {
		m = c.symmetric
	}
	k, ok := m[index]
	return k, ok
}

func (c *Cache) put(family Family, index uint64, key SpendingKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if family == FamilyGeneration {
		c.generation[index] = key
	} else {
		c.symmetric[index] = key
	}
}

// GetOrDerive returns the cached key for (family, index), deriving and
// caching it via deriveFn on a miss.
func (c *Cache) GetOrDerive(family Family, index uint64, deriveFn func(uint64) SpendingKey) SpendingKey {
	if k, ok := c.get(family, index); ok {
		return k
	}
	k := deriveFn(index)
	c.put(family, index, k)
	return k
}
