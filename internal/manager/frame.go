package manager

import (
	"terrainstream/internal/geo"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
)

// Renderable is everything the renderer needs to draw one tile.
type Renderable struct {
	Key     tile.Key
	Zoom    uint32
	Box     geo.Box
	Height  *terrain.Raster
	Overlay terrain.Overlay
	Handle  any
}

// Ground is the terrain probe under the camera.
type Ground struct {
	// Key is the renderable whose footprint contains the camera's ground
	// projection.
	Key tile.Key
	// Height is the terrain height under the camera in world units. Valid is
	// false when the camera is outside the probed tile.
	Height float64
	Valid  bool
	// Collision is set when the camera is below terrain plus clearance.
	// VerticalOffset then lifts it back above.
	Collision      bool
	VerticalOffset float64
}

// Frame is the result of one tick, renderables in traversal order.
type Frame struct {
	Renderables []Renderable
	Ground      Ground
	Traversed   int
}

// Stats are the engine counters. Totals accumulate over the session.
type Stats struct {
	Traversed   int    `json:"traversed"`
	Visible     int    `json:"visible"`
	DeepestZoom uint32 `json:"deepest_zoom"`

	InFlight      int  `json:"in_flight"`
	ResidentNodes int  `json:"resident_nodes"`
	DiskCached    int  `json:"disk_cached"`
	Unloadable    int  `json:"unloadable"`
	Offline       bool `json:"offline"`

	Requested        uint64 `json:"requested_total"`
	Deferred         uint64 `json:"deferred_total"`
	NetworkLoads     uint64 `json:"network_loads_total"`
	DiskLoads        uint64 `json:"disk_loads_total"`
	Errors           uint64 `json:"errors_total"`
	Timeouts         uint64 `json:"timeouts_total"`
	Corrupt          uint64 `json:"corrupt_total"`
	IOFailures       uint64 `json:"io_failures_total"`
	MemoryEvictions  uint64 `json:"memory_evictions_total"`
	DiskEvictions    uint64 `json:"disk_evictions_total"`
	DiskEvictFailed  uint64 `json:"disk_eviction_failures_total"`
	StalledEvictions uint64 `json:"stalled_evictions_total"`
}
