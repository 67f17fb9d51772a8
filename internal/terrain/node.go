package terrain

import (
	"math"
	"time"

	"terrainstream/internal/geo"
	"terrainstream/internal/tile"
)

// SampleCount is the number of LOD and horizon sample points per node.
const SampleCount = 9

// Overlay is an encoded overlay image ready to be uploaded by the renderer.
type Overlay struct {
	Width  int
	Height int
	Data   []byte
}

// Node is a resident, fully derived terrain tile.
//
// The sample grid is laid out on the tile before projection as
//
//	* - - - * - - - *
//	|               |
//	*       *       *
//	|               |
//	* - - - * - - - *
//
// i.e. the corners, the edge midpoints and the center.
type Node struct {
	Key     tile.Key
	Height  *Raster
	Overlay Overlay

	MinHeight float64
	MaxHeight float64
	Box       geo.Box

	// LODPoints are the samples on the terrain surface used for the split
	// distance test.
	LODPoints [SampleCount]geo.Vec3
	// HorizonPoints are the same samples lifted to MaxHeight, used for
	// horizon occlusion.
	HorizonPoints [SampleCount]geo.Vec3

	LastUsed time.Time

	// Handle belongs to the rendering collaborator.
	Handle any
}

// NewNode derives all geometry for key from its decoded height raster.
func NewNode(key tile.Key, height *Raster, overlay Overlay) *Node {
	n := &Node{
		Key:      key,
		Height:   height,
		Overlay:  overlay,
		LastUsed: time.Now(),
	}

	n.MinHeight, n.MaxHeight = height.MinMax()
	n.generateSamplePoints()
	n.generateBox()
	return n
}

func (n *Node) sampleLonLat(i, j int) geo.LonLat {
	scale := math.Exp2(float64(n.Key.Z))
	return geo.InverseWebMercator(geo.Mercator{
		U: (float64(n.Key.X) + float64(i)*0.5) / scale,
		V: (float64(n.Key.Y) + float64(j)*0.5) / scale,
	})
}

func (n *Node) generateSamplePoints() {
	idx := 0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ll := n.sampleLonLat(i, j)
			px := i * (n.Height.Width - 1) / 2
			py := j * (n.Height.Height - 1) / 2

			n.LODPoints[idx] = geo.GeodeticToCartesian(ll, n.Height.ScaledHeight(px, py))
			n.HorizonPoints[idx] = geo.GeodeticToCartesian(ll, n.MaxHeight)
			idx++
		}
	}
}

func (n *Node) generateBox() {
	switch n.Key.Z {
	case 0:
		r := geo.GlobeRadius + math.Max(0, n.MaxHeight)
		n.Box = geo.Box{Min: geo.V(-r, -r, -r), Max: geo.V(r, r, r)}
	case 1:
		n.Box = n.quadrantBox()
	default:
		box := geo.EmptyBox()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				ll := n.sampleLonLat(i, j)
				box = box.Extend(geo.GeodeticToCartesian(ll, n.MinHeight))
				box = box.Extend(geo.GeodeticToCartesian(ll, n.MaxHeight))
			}
		}
		n.Box = box
	}
}

// quadrantBox bounds a zoom 1 tile. Its sample points do not bound the
// bulge of a quarter globe, so the box is the whole quadrant.
func (n *Node) quadrantBox() geo.Box {
	r := geo.GlobeRadius + math.Max(0, n.MaxHeight)
	box := geo.Box{Min: geo.V(-r, -r, -r), Max: geo.V(r, r, r)}

	// Northern row (y=0) has non-negative latitude, i.e. world Y >= 0.
	if n.Key.Y == 0 {
		box.Min.Y = 0
	} else {
		box.Max.Y = 0
	}
	// Western column (x=0) spans longitudes in [-pi, 0], i.e. world Z <= 0.
	if n.Key.X == 0 {
		box.Max.Z = 0
	} else {
		box.Min.Z = 0
	}
	return box
}

// Footprint returns the node's extent in normalized web mercator space.
func Footprint(key tile.Key) (geo.Mercator, geo.Mercator) {
	scale := math.Exp2(float64(key.Z))
	return geo.Mercator{U: float64(key.X) / scale, V: float64(key.Y) / scale},
		geo.Mercator{U: float64(key.X+1) / scale, V: float64(key.Y+1) / scale}
}

// FootprintContains reports whether m lies inside key's mercator footprint.
func FootprintContains(key tile.Key, m geo.Mercator) bool {
	lo, hi := Footprint(key)
	return m.U >= lo.U && m.U <= hi.U && m.V >= lo.V && m.V <= hi.V
}

// HeightAt samples the terrain under a mercator position inside the node,
// nearest neighbour, in world units. ok is false outside the footprint.
func (n *Node) HeightAt(m geo.Mercator) (float64, bool) {
	lo, hi := Footprint(n.Key)
	fx := (m.U - lo.U) / (hi.U - lo.U)
	fy := (m.V - lo.V) / (hi.V - lo.V)
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, false
	}

	x := int(math.Round(fx * float64(n.Height.Width-1)))
	y := int(math.Round(fy * float64(n.Height.Height-1)))
	return n.Height.ScaledHeight(x, y), true
}
