package manager

import (
	"math"
	"time"

	"terrainstream/internal/geo"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
)

// SplitFunc decides whether a visible node should be replaced by its
// children. The max zoom limit is applied separately.
type SplitFunc func(cam Camera, n *terrain.Node) bool

// DistanceSplit splits a node when any of its LOD points lies within
// SplitDistance of the camera.
func DistanceSplit(cam Camera, n *terrain.Node) bool {
	d := SplitDistance(n.Key)
	pos := cam.Position()
	for _, p := range n.LODPoints {
		v := p.Sub(pos)
		if v.Dot(v) <= d*d {
			return true
		}
	}
	return false
}

// SplitDistance halves with every zoom level. Mercator tiles shrink towards
// the poles, so high latitude tiles split closer to the camera.
func SplitDistance(key tile.Key) float64 {
	base := geo.GlobeRadius * 3.5
	scale := math.Exp2(float64(key.Z))

	if key.Z >= 3 {
		fromEquator := math.Abs(float64(key.Y)/scale - 0.5)
		switch {
		case fromEquator >= 0.4:
			base *= 0.41
		case fromEquator >= 0.3:
			base *= 0.52
		}
	}
	return base / scale
}

type traversal struct {
	m     *Manager
	cam   Camera
	now   time.Time
	frame Frame

	ground    geo.Mercator
	groundKey tile.Key
}

func newTraversal(m *Manager, cam Camera, now time.Time) *traversal {
	return &traversal{
		m:      m,
		cam:    cam,
		now:    now,
		ground: geo.WebMercator(geo.CartesianToGeodetic(cam.Position())),
	}
}

func (t *traversal) collect(key tile.Key) {
	m := t.m

	node, _ := m.memory.Get(key)
	m.disk.Get(key)
	node.LastUsed = t.now

	if !t.visible(node) {
		return
	}
	t.frame.Traversed++

	split := key.Z < m.opts.MaxZoom && m.opts.Split(t.cam, node)
	if !split {
		t.emit(node)
		return
	}

	children := key.Children()
	if m.allResident(children) {
		for _, c := range children {
			t.collect(c)
		}
		return
	}

	// Draw the parent until all four children have arrived.
	t.emit(node)
	for _, c := range children {
		m.requestNode(c)
	}
}

func (t *traversal) visible(n *terrain.Node) bool {
	z := n.Key.Z
	opts := t.m.opts

	if z > opts.AlwaysVisibleDepth && !t.cam.MightBeVisible(n.Box.Min, n.Box.Max) {
		return false
	}
	if z >= opts.HorizonCullZoom && t.cam.IsHorizonOccluded(n.HorizonPoints[:]) {
		return false
	}
	return true
}

func (t *traversal) emit(n *terrain.Node) {
	t.frame.Renderables = append(t.frame.Renderables, Renderable{
		Key:     n.Key,
		Zoom:    n.Key.Z,
		Box:     n.Box,
		Height:  n.Height,
		Overlay: n.Overlay,
		Handle:  n.Handle,
	})

	if terrain.FootprintContains(n.Key, t.ground) {
		t.groundKey = n.Key
	}
}

func (m *Manager) allResident(keys [4]tile.Key) bool {
	for _, k := range keys {
		if !m.memory.Contains(k) {
			return false
		}
	}
	return true
}

// probeGround samples the terrain under the camera in the tile found during
// traversal and reports how far the camera must rise to stay above it.
func (m *Manager) probeGround(cam Camera, key tile.Key, ground geo.Mercator) Ground {
	g := Ground{Key: key}

	node, ok := m.memory.Peek(key)
	if !ok {
		return g
	}

	g.Height, g.Valid = node.HeightAt(ground)
	if !g.Valid {
		return g
	}

	pos := cam.Position()
	surface := geo.GeodeticToCartesian(geo.CartesianToGeodetic(pos), g.Height+m.opts.GroundClearance)
	if offset := surface.Len() - pos.Len(); offset > 0 {
		g.Collision = true
		g.VerticalOffset = offset
	}
	return g
}
