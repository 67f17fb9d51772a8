package geo

import "math"

const (
	// GlobeRadius is the world-space radius of the spherical globe.
	GlobeRadius = 316.22776601683796 // sqrt(100000)

	EarthRadiusMeters = 6_371_000.0

	// HeightScale converts meters of elevation into world units.
	HeightScale = GlobeRadius / EarthRadiusMeters

	// MaxMercatorLatitude is where the web mercator square ends, in radians.
	MaxMercatorLatitude = 1.4844222297453324 // 85.0511 degrees
)

// LonLat is a geodetic position in radians.
type LonLat struct {
	Lon, Lat float64
}

// Mercator is a normalized web mercator position: (0,0) is the north-west
// corner of the world square, (1,1) the south-east.
type Mercator struct {
	U, V float64
}

func InverseWebMercator(m Mercator) LonLat {
	return LonLat{
		Lon: m.U*2*math.Pi - math.Pi,
		Lat: math.Atan(math.Sinh(math.Pi * (1 - 2*m.V))),
	}
}

func WebMercator(ll LonLat) Mercator {
	lat := math.Max(-MaxMercatorLatitude, math.Min(MaxMercatorLatitude, ll.Lat))
	return Mercator{
		U: (ll.Lon + math.Pi) / (2 * math.Pi),
		V: (1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2,
	}
}

// SurfaceNormal is the outward normal of the globe at ll. The globe's axis
// is world Y.
func SurfaceNormal(ll LonLat) Vec3 {
	cosLat := math.Cos(ll.Lat)
	return Vec3{
		X: cosLat * math.Cos(ll.Lon),
		Y: math.Sin(ll.Lat),
		Z: cosLat * math.Sin(ll.Lon),
	}
}

// GeodeticToCartesian places a point height world units above the globe
// surface at ll.
func GeodeticToCartesian(ll LonLat, height float64) Vec3 {
	return SurfaceNormal(ll).Scale(GlobeRadius + height)
}

// CartesianToGeodetic is the inverse of GeodeticToCartesian, ignoring height.
func CartesianToGeodetic(p Vec3) LonLat {
	l := p.Len()
	if l == 0 {
		return LonLat{}
	}
	return LonLat{
		Lon: math.Atan2(p.Z, p.X),
		Lat: math.Asin(math.Max(-1, math.Min(1, p.Y/l))),
	}
}
