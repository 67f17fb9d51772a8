package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"terrainstream/internal/cache"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
	"terrainstream/internal/tile_source"
	"terrainstream/internal/worker"
)

type Options struct {
	MemoryCacheSize int
	DiskCacheSize   int
	MaxZoom         uint32

	// OfflineCooldown pauses network dispatch after the most recent error.
	OfflineCooldown time.Duration
	// Offline disables network dispatch for the whole session.
	Offline bool

	// Tiles up to this zoom skip the frustum test.
	AlwaysVisibleDepth uint32
	// Tiles from this zoom on are also horizon culled.
	HorizonCullZoom uint32
	// GroundClearance is the minimum camera height above terrain in world
	// units.
	GroundClearance float64

	Split SplitFunc
	Now   func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MemoryCacheSize:    200,
		DiskCacheSize:      10000,
		MaxZoom:            16,
		OfflineCooldown:    5 * time.Second,
		AlwaysVisibleDepth: 2,
		HorizonCullZoom:    3,
		GroundClearance:    0.04,
		Split:              DistanceSplit,
		Now:                time.Now,
	}
}

// Deps are the manager's collaborators. Resources and Observer are
// optional.
type Deps struct {
	Pool      LoadPool
	Evictor   DiskEvictor
	Store     cache.TileStore
	Scanner   Reconciler
	Resources Resources
	Observer  Observer
}

// Manager owns both tile caches and drives the load and eviction workers.
// Everything except Stats must be called from one goroutine.
type Manager struct {
	opts      Options
	pool      LoadPool
	evictor   DiskEvictor
	store     cache.TileStore
	scanner   Reconciler
	resources Resources
	observer  Observer
	logger    *zap.Logger

	memory *cache.LRU[tile.Key, *terrain.Node]
	disk   *cache.LRU[tile.Key, struct{}]
	// descendants counts the memory resident strict descendants of a key.
	descendants map[tile.Key]int

	loading    map[tile.Key]struct{}
	unloadable map[tile.Key]struct{}
	evicting   map[tile.Key]struct{}

	offline   bool
	lastError time.Time

	// stats is owned by the tick goroutine, published is its last
	// snapshot.
	stats     Stats
	published Stats
	statsMu   sync.RWMutex
}

func New(opts Options, deps Deps, logger *zap.Logger) *Manager {
	if opts.Split == nil {
		opts.Split = DistanceSplit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Resources == nil {
		deps.Resources = nopResources{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	return &Manager{
		opts:        opts,
		pool:        deps.Pool,
		evictor:     deps.Evictor,
		store:       deps.Store,
		scanner:     deps.Scanner,
		resources:   deps.Resources,
		observer:    deps.Observer,
		logger:      logger,
		memory:      cache.NewLRU[tile.Key, *terrain.Node](opts.MemoryCacheSize),
		disk:        cache.NewLRU[tile.Key, struct{}](opts.DiskCacheSize),
		descendants: make(map[tile.Key]int),
		loading:     make(map[tile.Key]struct{}),
		unloadable:  make(map[tile.Key]struct{}),
		evicting:    make(map[tile.Key]struct{}),
	}
}

// Start reconciles the disk cache, starts the workers and requests the
// root tile.
func (m *Manager) Start(ctx context.Context) error {
	keys, err := m.scanner.Scan()
	if err != nil {
		return fmt.Errorf("reconcile disk cache: %w", err)
	}
	m.loadDiskCache(keys)

	m.pool.Start(ctx)
	m.evictor.Start(ctx)

	m.logger.Info("Manager started",
		zap.Int("memory_cache_size", m.memory.Capacity()),
		zap.Int("disk_cache_size", m.disk.Capacity()),
		zap.Int("disk_cached", m.disk.Size()),
		zap.Uint32("max_zoom", m.opts.MaxZoom),
		zap.Bool("offline", m.opts.Offline),
	)

	m.requestNode(tile.Root)
	m.publish(Frame{})
	return nil
}

// Stop shuts the workers down and releases every resident node.
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	if err := m.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop load workers: %w", err))
	}
	if err := m.evictor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop eviction worker: %w", err))
	}

	// Nodes still in the response queue were never acquired.
	dropped := len(m.pool.Responses().PopAll())
	m.drainEvictions()

	released := 0
	for _, key := range m.memory.Keys() {
		if node, ok := m.memory.Peek(key); ok {
			m.resources.Release(node)
			released++
		}
		m.memory.Remove(key)
	}
	clear(m.descendants)

	m.logger.Info("Manager stopped",
		zap.Int("released_nodes", released),
		zap.Int("dropped_responses", dropped),
	)
	return errors.Join(errs...)
}

// Tick drains the worker queues and traverses the quadtree for cam.
func (m *Manager) Tick(cam Camera) Frame {
	now := m.opts.Now()
	if m.offline && now.Sub(m.lastError) > m.opts.OfflineCooldown {
		m.offline = false
		m.logger.Info("Offline cooldown elapsed, resuming network requests")
	}

	m.drainResponses(now)
	m.drainEvictions()

	var frame Frame
	if !m.memory.Contains(tile.Root) {
		// Bootstrap: retried until the root arrives.
		m.requestNode(tile.Root)
		m.publish(frame)
		return frame
	}

	t := newTraversal(m, cam, now)
	t.collect(tile.Root)
	frame = t.frame
	frame.Ground = m.probeGround(cam, t.groundKey, t.ground)

	m.publish(frame)
	return frame
}

// Stats returns a snapshot of the counters as of the last tick. Safe for
// concurrent use.
func (m *Manager) Stats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.published
}

func (m *Manager) publish(frame Frame) {
	m.stats.Traversed = frame.Traversed
	m.stats.Visible = len(frame.Renderables)
	m.stats.DeepestZoom = 0
	for _, r := range frame.Renderables {
		m.stats.DeepestZoom = max(m.stats.DeepestZoom, r.Zoom)
	}
	m.stats.InFlight = len(m.loading)
	m.stats.ResidentNodes = m.memory.Size()
	m.stats.DiskCached = m.disk.Size()
	m.stats.Unloadable = len(m.unloadable)
	m.stats.Offline = m.offline || m.opts.Offline

	m.statsMu.Lock()
	m.published = m.stats
	m.statsMu.Unlock()

	m.observer.OnTick(m.stats)
}

func (m *Manager) networkDisabled() bool {
	return m.offline || m.opts.Offline
}

// requestNode dispatches a load for key unless it is resident, already
// loading, known to be unloadable or being deleted from disk. Network loads
// are deferred while offline.
func (m *Manager) requestNode(key tile.Key) {
	if m.memory.Contains(key) || m.isLoading(key) || m.isUnloadable(key) || m.isEvicting(key) {
		return
	}

	origin := tile_source.OriginNetwork
	if m.disk.Contains(key) {
		origin = tile_source.OriginDisk
	}
	if origin == tile_source.OriginNetwork && m.networkDisabled() {
		m.stats.Deferred++
		return
	}

	m.loading[key] = struct{}{}
	m.stats.Requested++
	m.pool.Dispatch(worker.LoadRequest{
		ID:      uuid.New(),
		Key:     key,
		Source:  origin,
		Offline: m.networkDisabled(),
		Kind:    worker.KindLoad,
	})
}

func (m *Manager) isLoading(key tile.Key) bool {
	_, ok := m.loading[key]
	return ok
}

func (m *Manager) isUnloadable(key tile.Key) bool {
	_, ok := m.unloadable[key]
	return ok
}

func (m *Manager) isEvicting(key tile.Key) bool {
	_, ok := m.evicting[key]
	return ok
}

func (m *Manager) drainResponses(now time.Time) {
	for _, resp := range m.pool.Responses().PopAll() {
		// Stop acknowledgements carry no request.
		if resp.RequestID == uuid.Nil {
			continue
		}

		delete(m.loading, resp.Key)
		m.observer.OnResponse(resp.Outcome, resp.Origin, resp.Duration)
		if resp.Origin == tile_source.OriginNetwork && resp.Outcome != worker.OutcomeOffline {
			m.stats.NetworkLoads++
		} else if resp.Origin == tile_source.OriginDisk {
			m.stats.DiskLoads++
		}

		log := m.logger.With(zap.Stringer("key", resp.Key), zap.Stringer("origin", resp.Origin))

		switch resp.Outcome {
		case worker.OutcomeOK:
			m.accept(resp.Node)
		case worker.OutcomeUnloadable:
			m.unloadable[resp.Key] = struct{}{}
			log.Debug("Tile has no data")
		case worker.OutcomeError, worker.OutcomeUnexpected:
			m.stats.Errors++
			m.lastError = now
			if !m.offline {
				log.Warn("Network error, pausing network requests",
					zap.Duration("cooldown", m.opts.OfflineCooldown), zap.Error(resp.Err))
			}
			m.offline = true
			if resp.Outcome == worker.OutcomeUnexpected {
				log.Error("Unexpected response from tile API", zap.Error(resp.Err))
			}
		case worker.OutcomeTimeout:
			m.stats.Timeouts++
			log.Debug("Tile request timed out", zap.Error(resp.Err))
		case worker.OutcomeCorrupt, worker.OutcomeIOFailure:
			if resp.Outcome == worker.OutcomeCorrupt {
				m.stats.Corrupt++
			} else {
				m.stats.IOFailures++
			}
			m.unloadable[resp.Key] = struct{}{}
			log.Error("Failed to load tile, skipping it for this session",
				zap.Stringer("outcome", resp.Outcome), zap.Error(resp.Err))
		case worker.OutcomeOffline, worker.OutcomeStopped:
			log.Debug("Tile request not served", zap.Stringer("outcome", resp.Outcome))
		}
	}
}

func (m *Manager) drainEvictions() {
	for _, res := range m.evictor.Results().PopAll() {
		delete(m.evicting, res.Key)
		if !res.OK {
			m.stats.DiskEvictFailed++
			m.logger.Warn("Disk eviction failed", zap.Stringer("key", res.Key), zap.Error(res.Err))
		}
	}
}

// accept makes a freshly loaded node resident and records its files as
// present on disk.
func (m *Manager) accept(node *terrain.Node) {
	if node == nil || m.memory.Contains(node.Key) {
		return
	}

	m.resources.Acquire(node)
	m.putMemory(node)
	m.putDisk(node.Key)
}

// loadDiskCache fills the disk presence cache from the startup scan, oldest
// first. Tiles that do not fit are deleted right away.
func (m *Manager) loadDiskCache(keys []tile.Key) {
	removed := 0
	for _, key := range keys {
		ev, evicted := m.disk.Put(key, struct{}{})
		if !evicted {
			continue
		}

		ev = m.selectDiskEviction(ev)
		for _, kind := range cache.Kinds {
			if err := m.store.Remove(kind, ev.Key); err != nil {
				m.logger.Warn("Failed to delete tile over disk cache capacity", zap.Stringer("key", ev.Key), zap.Error(err))
			}
		}
		removed++
	}

	m.logger.Info("Disk cache loaded",
		zap.Int("tiles", m.disk.Size()),
		zap.Int("removed_over_capacity", removed),
	)
}
