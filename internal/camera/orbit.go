// Package camera provides a reference camera for driving the streaming
// engine without a renderer.
package camera

import (
	"math"

	"terrainstream/internal/geo"
)

// Params place a camera over the globe. Heading is measured clockwise from
// north and Pitch downwards from the local horizon, both in radians.
type Params struct {
	Location geo.LonLat
	Altitude float64
	Heading  float64
	Pitch    float64

	// FOV is the vertical field of view in radians.
	FOV    float64
	Aspect float64
	// Far limits the view distance. Zero means unlimited.
	Far float64
}

// Orbit is a camera hovering over the globe. Its visibility test uses the
// cone around the view frustum, which never rejects anything the frustum
// would accept.
type Orbit struct {
	params    Params
	position  geo.Vec3
	front     geo.Vec3
	halfAngle float64
}

func New(p Params) *Orbit {
	o := &Orbit{}
	o.Set(p)
	return o
}

func (o *Orbit) Set(p Params) {
	o.params = p

	ll := p.Location
	up := geo.SurfaceNormal(ll)
	sinLat, cosLat := math.Sincos(ll.Lat)
	sinLon, cosLon := math.Sincos(ll.Lon)
	north := geo.V(-sinLat*cosLon, cosLat, -sinLat*sinLon)
	east := geo.V(-sinLon, 0, cosLon)

	horizontal := north.Scale(math.Cos(p.Heading)).Add(east.Scale(math.Sin(p.Heading)))
	o.front = horizontal.Scale(math.Cos(p.Pitch)).Sub(up.Scale(math.Sin(p.Pitch))).Normalize()
	o.position = geo.GeodeticToCartesian(ll, p.Altitude)

	aspect := p.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	o.halfAngle = math.Atan(math.Tan(p.FOV/2) * math.Sqrt(1+aspect*aspect))
}

func (o *Orbit) Params() Params {
	return o.params
}

// Lift raises the camera by offset world units, e.g. to resolve a ground
// collision.
func (o *Orbit) Lift(offset float64) {
	p := o.params
	p.Altitude += offset
	o.Set(p)
}

func (o *Orbit) Position() geo.Vec3 {
	return o.position
}

func (o *Orbit) Front() geo.Vec3 {
	return o.front
}

// MightBeVisible tests the bounding sphere of the box against the view
// cone.
func (o *Orbit) MightBeVisible(min, max geo.Vec3) bool {
	box := geo.Box{Min: min, Max: max}
	r := box.Size().Len() / 2
	v := box.Center().Sub(o.position)
	dist := v.Len()
	if dist <= r {
		return true
	}

	along := v.Dot(o.front)
	if o.params.Far > 0 && along-r > o.params.Far {
		return false
	}

	angle := math.Acos(math.Max(-1, math.Min(1, along/dist)))
	return angle <= o.halfAngle+math.Asin(r/dist)
}

// IsHorizonOccluded reports whether every point lies behind the globe's
// horizon as seen from the camera. Computed in units of the globe radius.
func (o *Orbit) IsHorizonOccluded(points []geo.Vec3) bool {
	if len(points) == 0 {
		return false
	}

	cv := o.position.Scale(1 / geo.GlobeRadius)
	vh := cv.Dot(cv) - 1

	for _, p := range points {
		vt := p.Scale(1 / geo.GlobeRadius).Sub(cv)
		vtDotVc := -vt.Dot(cv)
		occluded := vtDotVc > vh && vtDotVc*vtDotVc/vt.Dot(vt) > vh
		if !occluded {
			return false
		}
	}
	return true
}
