package manager

import (
	"go.uber.org/zap"

	"terrainstream/internal/cache"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
)

// An entry may leave a cache only if it is not the root and none of its
// descendants is resident in memory. The LRU tail is not always such an
// entry, so a rejected candidate is put back as MRU and the next tail is
// tried instead.

func (m *Manager) putMemory(node *terrain.Node) {
	ev, evicted := m.memory.Put(node.Key, node)
	m.addResident(node.Key)
	if !evicted {
		return
	}

	ev = selectEviction(m, m.memory, ev, m.memoryEvictable)
	m.removeResident(ev.Key)
	m.resources.Release(ev.Value)
	m.stats.MemoryEvictions++

	m.logger.Debug("Evicted node from memory", zap.Stringer("key", ev.Key))
}

func (m *Manager) putDisk(key tile.Key) {
	ev, evicted := m.disk.Put(key, struct{}{})
	if !evicted {
		return
	}

	ev = m.selectDiskEviction(ev)
	m.evicting[ev.Key] = struct{}{}
	m.evictor.Enqueue(ev.Key)
	m.stats.DiskEvictions++

	m.logger.Debug("Evicting tile from disk", zap.Stringer("key", ev.Key))
}

func (m *Manager) selectDiskEviction(ev cache.Eviction[tile.Key, struct{}]) cache.Eviction[tile.Key, struct{}] {
	return selectEviction(m, m.disk, ev, m.diskEvictable)
}

func (m *Manager) memoryEvictable(key tile.Key) bool {
	return !key.IsRoot() && m.descendants[key] == 0
}

func (m *Manager) diskEvictable(key tile.Key) bool {
	return m.memoryEvictable(key) && !m.isEvicting(key) && !m.isLoading(key)
}

// selectEviction reinserts rejected candidates until one passes evictable.
// The loop is bounded: after a full cycle over the cache without an
// evictable entry it gives up and evicts the last non-root candidate.
func selectEviction[V any](m *Manager, c *cache.LRU[tile.Key, V], ev cache.Eviction[tile.Key, V], evictable func(tile.Key) bool) cache.Eviction[tile.Key, V] {
	for round := 0; !evictable(ev.Key); round++ {
		if round > c.Capacity() {
			if ev.Key.IsRoot() {
				ev, _ = c.Put(ev.Key, ev.Value)
			}
			m.stats.StalledEvictions++
			m.logger.Error("No evictable cache entry found, evicting a protected one",
				zap.Stringer("key", ev.Key),
				zap.Int("capacity", c.Capacity()))
			return ev
		}
		ev, _ = c.Put(ev.Key, ev.Value)
	}
	return ev
}

func (m *Manager) addResident(key tile.Key) {
	for a, ok := key.Parent(); ok; a, ok = a.Parent() {
		m.descendants[a]++
	}
}

func (m *Manager) removeResident(key tile.Key) {
	for a, ok := key.Parent(); ok; a, ok = a.Parent() {
		m.descendants[a]--
		if m.descendants[a] <= 0 {
			delete(m.descendants, a)
		}
	}
}
