package cache

import "container/list"

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Eviction is an entry pushed out of an LRU by Put. The cache never disposes
// of evicted values; the caller owns them from here on.
type Eviction[K comparable, V any] struct {
	Key   K
	Value V
}

// LRU is a fixed capacity least-recently-used cache. It is not safe for
// concurrent use.
type LRU[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	lruList  *list.List
}

// NewLRU creates an LRU holding at most capacity entries. Capacities below
// one are raised to one.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		lruList:  list.New(),
	}
}

func (c *LRU[K, V]) Contains(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Peek returns the value for key without touching recency.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return elem.Value.(*entry[K, V]).value, true
}

// Put inserts or updates key as the most recently used entry. Updating an
// existing key never evicts. Inserting into a full cache evicts exactly the
// least recently used entry and hands it back.
func (c *LRU[K, V]) Put(key K, value V) (Eviction[K, V], bool) {
	var evicted Eviction[K, V]

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.lruList.MoveToFront(elem)
		return evicted, false
	}

	didEvict := false
	if c.lruList.Len() >= c.capacity {
		oldest := c.lruList.Back()
		ent := oldest.Value.(*entry[K, V])
		delete(c.items, ent.key)
		c.lruList.Remove(oldest)
		evicted = Eviction[K, V]{Key: ent.key, Value: ent.value}
		didEvict = true
	}

	elem := c.lruList.PushFront(&entry[K, V]{key: key, value: value})
	c.items[key] = elem
	return evicted, didEvict
}

// Remove deletes key and returns its value.
func (c *LRU[K, V]) Remove(key K) (V, bool) {
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(c.items, key)
	c.lruList.Remove(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	keys := make([]K, 0, c.lruList.Len())
	for e := c.lruList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

func (c *LRU[K, V]) Size() int {
	return c.lruList.Len()
}

func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}
