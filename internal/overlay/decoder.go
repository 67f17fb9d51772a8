package overlay

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"terrainstream/internal/terrain"
)

// Decoder normalizes cached overlay images with libvips so that every node
// carries a texture of the same size. vips must be started by the caller.
type Decoder struct {
	size    int
	quality int
	logger  *zap.Logger
}

// New returns a decoder producing size x size JPEG payloads. A size of 0
// keeps the source dimensions.
func New(size, quality int, logger *zap.Logger) *Decoder {
	return &Decoder{
		size:    size,
		quality: quality,
		logger:  logger,
	}
}

func (d *Decoder) Decode(path string) (terrain.Overlay, error) {
	image, err := loadImage(path)
	if err != nil {
		return terrain.Overlay{}, fmt.Errorf("failed to open overlay: %w", err)
	}
	defer image.Close()

	w, h := image.Width(), image.Height()
	if w == 0 || h == 0 {
		return terrain.Overlay{}, fmt.Errorf("overlay %s has no pixels", filepath.Base(path))
	}

	if d.size > 0 && (w != d.size || h != d.size) {
		scale := float64(d.size) / float64(max(w, h))

		resizeOpts := vips.DefaultResizeOptions()
		resizeOpts.Kernel = vips.KernelLanczos3
		if err := image.Resize(scale, resizeOpts); err != nil {
			return terrain.Overlay{}, fmt.Errorf("failed to resize overlay: %w", err)
		}

		d.logger.Debug("Resized overlay",
			zap.String("file", filepath.Base(path)),
			zap.Int("from", max(w, h)),
			zap.Int("to", d.size))
	}

	jpegOpts := vips.DefaultJpegsaveBufferOptions()
	jpegOpts.Q = d.quality
	jpegOpts.Interlace = false

	data, err := image.JpegsaveBuffer(jpegOpts)
	if err != nil {
		return terrain.Overlay{}, fmt.Errorf("failed to export overlay: %w", err)
	}

	return terrain.Overlay{
		Width:  image.Width(),
		Height: image.Height(),
		Data:   data,
	}, nil
}

// loadImage loads an overlay based on file extension. Overlays are read
// once, front to back.
func loadImage(path string) (*vips.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	access := vips.AccessSequential

	switch ext {
	case ".jpg", ".jpeg":
		opts := vips.DefaultJpegloadOptions()
		opts.Access = access
		return vips.NewJpegload(path, opts)
	case ".png":
		opts := vips.DefaultPngloadOptions()
		opts.Access = access
		return vips.NewPngload(path, opts)
	case ".webp":
		opts := vips.DefaultWebploadOptions()
		opts.Access = access
		return vips.NewWebpload(path, opts)
	default:
		return nil, fmt.Errorf("unsupported overlay format: %s", ext)
	}
}
