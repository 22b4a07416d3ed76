package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig controls the behavior of an LRUCache.
type CacheConfig[K comparable, V any] struct {
	// Capacity is the maximum number of entries. Zero means unlimited.
	Capacity int
	// MaxWeight is the maximum total weight of all entries. Zero means
	// unlimited.
	MaxWeight int
	// TTL is how long an entry stays valid. Zero means entries never expire.
	TTL time.Duration
}

// entry holds the data stored in a list node.
type entry[K comparable, V any] struct {
	key        K
	value      V
	weight     int
	expiration time.Time
}

// LRUCache is a generic, configurable, thread-safe LRU cache.
type LRUCache[K comparable, V any] struct {
	config        CacheConfig[K, V]
	ll            *list.List
	cache         map[K]*list.Element
	currentWeight int
	lock          sync.RWMutex
}

// NewWithConfig creates an LRU cache with the given configuration. At least
// one of Capacity or MaxWeight must be set.
func NewWithConfig[K comparable, V any](config CacheConfig[K, V]) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 && config.MaxWeight <= 0 {
		return nil, fmt.Errorf("at least one of Capacity or MaxWeight must be set")
	}
	return &LRUCache[K, V]{
		config: config,
		ll:     list.New(),
		cache:  make(map[K]*list.Element),
	}, nil
}

// Get returns the value for key and whether it was present. Expired entries
// are removed lazily on access.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	element, ok := c.cache[key]
	if !ok {
		var zeroV V
		return zeroV, false
	}

	entry := element.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(entry.expiration) {
		c.removeElement(element)
		var zeroV V
		return zeroV, false
	}

	c.ll.MoveToFront(element)
	return entry.value, true
}

// Put adds or updates a key/value pair with the given weight. Pass 1 for
// weight when only capacity-based eviction is in use.
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, ok := c.cache[key]; ok {
		entry := element.Value.(*entry[K, V])
		c.currentWeight += (weight - entry.weight)
		entry.weight = weight
		entry.value = value
		if c.config.TTL > 0 {
			entry.expiration = time.Now().Add(c.config.TTL)
		}
		c.ll.MoveToFront(element)
	} else {
		newEntry := &entry[K, V]{
			key:    key,
			value:  value,
			weight: weight,
		}
		if c.config.TTL > 0 {
			newEntry.expiration = time.Now().Add(c.config.TTL)
		}
		element := c.ll.PushFront(newEntry)
		c.cache[key] = element
		c.currentWeight += weight
	}

	// A single large entry may push out several old ones.
	for c.isOverCapacity() {
		c.evict()
	}
}

// isOverCapacity reports whether the cache exceeds its capacity or weight
// limit. Caller must hold the lock.
func (c *LRUCache[K, V]) isOverCapacity() bool {
	if c.config.Capacity > 0 && c.ll.Len() > c.config.Capacity {
		return true
	}
	if c.config.MaxWeight > 0 && c.currentWeight > c.config.MaxWeight {
		return true
	}
	return false
}

// evict removes the least recently used entry. Caller must hold the lock.
func (c *LRUCache[K, V]) evict() {
	backElement := c.ll.Back()
	if backElement != nil {
		c.removeElement(backElement)
	}
}

// removeElement removes an element from both the list and the map. Caller
// must hold the lock.
func (c *LRUCache[K, V]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	entry := e.Value.(*entry[K, V])
	delete(c.cache, entry.key)
	c.currentWeight -= entry.weight
}

// Len returns the number of entries currently cached.
func (c *LRUCache[K, V]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.ll.Len()
}

// Weight returns the total weight of all cached entries.
func (c *LRUCache[K, V]) Weight() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.currentWeight
}
