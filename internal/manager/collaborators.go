package manager

import (
	"context"
	"time"

	"terrainstream/internal/geo"
	"terrainstream/internal/queue"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
	"terrainstream/internal/tile_source"
	"terrainstream/internal/worker"
)

// Camera is the visibility collaborator.
type Camera interface {
	Position() geo.Vec3
	// MightBeVisible may report false positives, never false negatives.
	MightBeVisible(min, max geo.Vec3) bool
	// IsHorizonOccluded reports whether all points are hidden behind the
	// globe.
	IsHorizonOccluded(points []geo.Vec3) bool
}

// Resources owns whatever the renderer allocates per node. Acquire is called
// once when a node becomes resident, Release once when it leaves memory.
type Resources interface {
	Acquire(n *terrain.Node)
	Release(n *terrain.Node)
}

// Observer receives engine counters.
type Observer interface {
	OnTick(stats Stats)
	OnResponse(outcome worker.Outcome, origin tile_source.Origin, duration time.Duration)
}

// LoadPool is the load worker pool as seen by the manager.
type LoadPool interface {
	Dispatch(req worker.LoadRequest) int
	Responses() *queue.Queue[worker.LoadResponse]
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// DiskEvictor deletes evicted tiles from disk in the background.
type DiskEvictor interface {
	Enqueue(key tile.Key)
	Results() *queue.Queue[worker.EvictResult]
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// Reconciler lists the valid tiles already on disk.
type Reconciler interface {
	Scan() ([]tile.Key, error)
}

type nopResources struct{}

func (nopResources) Acquire(*terrain.Node) {}
func (nopResources) Release(*terrain.Node) {}

type nopObserver struct{}

func (nopObserver) OnTick(Stats) {}
func (nopObserver) OnResponse(worker.Outcome, tile_source.Origin, time.Duration) {}
