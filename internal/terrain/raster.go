package terrain

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"terrainstream/internal/geo"
)

var ErrEmptyRaster = errors.New("empty height raster")

// Raster is a decoded terrain-RGB height tile: three bytes per pixel,
// row-major, elevation packed as -10000 + (R*65536 + G*256 + B) * 0.1 meters.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// DecodeRaster decodes an encoded terrain-RGB image. Lossless webp and png
// are supported.
func DecodeRaster(data []byte) (*Raster, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode height raster: %w", err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s height raster: %w", format, ErrEmptyRaster)
	}

	r := &Raster{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]byte, b.Dx()*b.Dy()*3),
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r.Pix[i] = c.R
			r.Pix[i+1] = c.G
			r.Pix[i+2] = c.B
			i += 3
		}
	}

	return r, nil
}

// Meters returns the elevation at pixel (x, y), clamped to the raster.
func (r *Raster) Meters(x, y int) float64 {
	x = clamp(x, 0, r.Width-1)
	y = clamp(y, 0, r.Height-1)
	i := (y*r.Width + x) * 3
	packed := float64(r.Pix[i])*65536 + float64(r.Pix[i+1])*256 + float64(r.Pix[i+2])
	return -10000 + packed*0.1
}

// ScaledHeight returns the elevation at pixel (x, y) in world units.
func (r *Raster) ScaledHeight(x, y int) float64 {
	return r.Meters(x, y) * geo.HeightScale
}

// MinMax scans the whole raster once for its elevation range in world units.
func (r *Raster) MinMax() (float64, float64) {
	minH, maxH := r.ScaledHeight(0, 0), r.ScaledHeight(0, 0)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			h := r.ScaledHeight(x, y)
			if h < minH {
				minH = h
			}
			if h > maxH {
				maxH = h
			}
		}
	}
	return minH, maxH
}

// EncodeMeters packs an elevation into terrain-RGB bytes. It is the inverse
// of Meters up to the 0.1m quantization.
func EncodeMeters(m float64) (byte, byte, byte) {
	v := int(math.Round((m + 10000) * 10))
	if v < 0 {
		v = 0
	}
	if v > 1<<24-1 {
		v = 1<<24 - 1
	}
	return byte(v >> 16), byte(v >> 8), byte(v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
