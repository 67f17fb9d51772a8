package terrain

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainstream/internal/geo"
	"terrainstream/internal/tile"
)

// rampRaster builds a size x size raster whose elevation grows with x.
func rampRaster(size int, base, step float64) *Raster {
	r := &Raster{Width: size, Height: size, Pix: make([]byte, size*size*3)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * 3
			r.Pix[i], r.Pix[i+1], r.Pix[i+2] = EncodeMeters(base + float64(x)*step)
		}
	}
	return r
}

func TestRasterMeters(t *testing.T) {
	r := &Raster{Width: 1, Height: 1, Pix: []byte{0x01, 0x86, 0xA0}}
	assert.InDelta(t, 0.0, r.Meters(0, 0), 1e-9)

	for _, m := range []float64{-10000, -432.1, 0, 123.4, 8848.8} {
		r.Pix[0], r.Pix[1], r.Pix[2] = EncodeMeters(m)
		assert.InDelta(t, m, r.Meters(0, 0), 0.05)
	}
}

func TestRasterMinMax(t *testing.T) {
	r := rampRaster(16, 100, 10)
	minH, maxH := r.MinMax()
	assert.InDelta(t, 100*geo.HeightScale, minH, 1e-9)
	assert.InDelta(t, 250*geo.HeightScale, maxH, 1e-9)
}

func TestDecodeRasterPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	r, g, b := EncodeMeters(500)
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	raster, err := DecodeRaster(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 4, raster.Width)
	assert.Equal(t, 2, raster.Height)
	assert.InDelta(t, 500, raster.Meters(3, 1), 0.05)
}

func TestDecodeRasterRejectsGarbage(t *testing.T) {
	_, err := DecodeRaster([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestNewNodeGeometry(t *testing.T) {
	for _, key := range []tile.Key{tile.Root, tile.New(1, 0, 1), tile.New(0, 1, 1), tile.New(5, 3, 3), tile.New(301, 200, 9)} {
		n := NewNode(key, rampRaster(32, 0, 50), Overlay{})

		assert.InDelta(t, 0, n.MinHeight, 1e-9)
		assert.InDelta(t, 31*50*geo.HeightScale, n.MaxHeight, 1e-9)
		assert.Less(t, n.MinHeight, n.MaxHeight)

		for i := 0; i < SampleCount; i++ {
			assert.True(t, n.Box.Contains(n.LODPoints[i]), "%s LOD point %d outside box", key, i)
			assert.True(t, n.Box.Contains(n.HorizonPoints[i]), "%s horizon point %d outside box", key, i)
			assert.InDelta(t, geo.GlobeRadius+n.MaxHeight, n.HorizonPoints[i].Len(), 1e-9)
			assert.LessOrEqual(t, n.LODPoints[i].Len(), n.HorizonPoints[i].Len()+1e-9)
		}
	}
}

func TestZoomOneQuadrants(t *testing.T) {
	nw := NewNode(tile.New(0, 0, 1), rampRaster(4, 0, 0), Overlay{})
	assert.Equal(t, 0.0, nw.Box.Min.Y)
	assert.Equal(t, 0.0, nw.Box.Max.Z)

	se := NewNode(tile.New(1, 1, 1), rampRaster(4, 0, 0), Overlay{})
	assert.Equal(t, 0.0, se.Box.Max.Y)
	assert.Equal(t, 0.0, se.Box.Min.Z)
}

func TestFootprintAndHeightAt(t *testing.T) {
	key := tile.New(2, 1, 2)
	lo, hi := Footprint(key)
	assert.Equal(t, geo.Mercator{U: 0.5, V: 0.25}, lo)
	assert.Equal(t, geo.Mercator{U: 0.75, V: 0.5}, hi)

	n := NewNode(key, rampRaster(11, 0, 100), Overlay{})
	h, ok := n.HeightAt(geo.Mercator{U: 0.75, V: 0.3})
	require.True(t, ok)
	assert.InDelta(t, 1000*geo.HeightScale, h, 1e-9)

	_, ok = n.HeightAt(geo.Mercator{U: 0.1, V: 0.3})
	assert.False(t, ok)
	assert.True(t, FootprintContains(key, geo.Mercator{U: 0.6, V: 0.4}))
	assert.False(t, FootprintContains(key, geo.Mercator{U: 0.6, V: 0.6}))
}
