package tile_source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"terrainstream/internal/cache"
	"terrainstream/internal/terrain"
	"terrainstream/internal/tile"
)

var (
	// ErrNoData means the server confirmed there is no data for the tile.
	ErrNoData = errors.New("no data for tile")
	// ErrBadStatus is a failure status the API documents as recoverable.
	ErrBadStatus = errors.New("recoverable error status")
	// ErrUnexpectedStatus is a status outside the API contract.
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrTimeout          = errors.New("request timed out")
	ErrCorrupt          = errors.New("corrupt tile data")
	ErrIO               = errors.New("tile cache i/o failure")
)

// Origin says where a tile is resolved from.
type Origin int

const (
	OriginDisk Origin = iota
	OriginNetwork
)

func (o Origin) String() string {
	if o == OriginNetwork {
		return "network"
	}
	return "disk"
}

// OverlayDecoder turns a cached overlay file into an uploadable payload.
type OverlayDecoder interface {
	Decode(path string) (terrain.Overlay, error)
}

type Options struct {
	HeightURL  string
	HeightKey  string
	HeightExt  string
	OverlayURL string
	OverlayKey string
	OverlayExt string

	Timeout time.Duration
	// RequestsPerSecond caps outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

// Source resolves a tile's height and overlay data, either from the disk
// cache or from the remote API. Network fetches are written through to
// disk before decoding, so a successful network load leaves both files in
// the store.
type Source struct {
	store   cache.TileStore
	overlay OverlayDecoder
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

func New(store cache.TileStore, overlay OverlayDecoder, opts Options, logger *zap.Logger) *Source {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Source{
		store:   store,
		overlay: overlay,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger,
	}
}

// Load resolves key from the given origin into a fully derived node.
func (s *Source) Load(ctx context.Context, key tile.Key, origin Origin) (*terrain.Node, error) {
	if origin == OriginNetwork {
		return s.LoadFromNetwork(ctx, key)
	}
	return s.LoadFromDisk(key)
}

func (s *Source) LoadFromDisk(key tile.Key) (*terrain.Node, error) {
	data, err := s.store.Read(cache.KindHeight, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return s.decode(key, data)
}

func (s *Source) LoadFromNetwork(ctx context.Context, key tile.Key) (*terrain.Node, error) {
	heightData, err := s.fetch(ctx, s.tileURL(cache.KindHeight, key))
	if err != nil {
		return nil, fmt.Errorf("fetch height %s: %w", key, err)
	}
	overlayData, err := s.fetch(ctx, s.tileURL(cache.KindOverlay, key))
	if err != nil {
		return nil, fmt.Errorf("fetch overlay %s: %w", key, err)
	}

	if err := s.store.Write(cache.KindHeight, key, heightData); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := s.store.Write(cache.KindOverlay, key, overlayData); err != nil {
		s.rollback(key, cache.KindHeight)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	node, err := s.decode(key, heightData)
	if err != nil {
		// Never leave a pair on disk that the next startup would trust.
		s.rollback(key, cache.Kinds[:]...)
		return nil, err
	}
	return node, nil
}

func (s *Source) decode(key tile.Key, heightData []byte) (*terrain.Node, error) {
	raster, err := terrain.DecodeRaster(heightData)
	if err != nil {
		return nil, fmt.Errorf("%w: height %s: %w", ErrCorrupt, key, err)
	}

	overlay, err := s.overlay.Decode(s.store.Path(cache.KindOverlay, key))
	if err != nil {
		return nil, fmt.Errorf("%w: overlay %s: %w", ErrCorrupt, key, err)
	}

	return terrain.NewNode(key, raster, overlay), nil
}

func (s *Source) rollback(key tile.Key, kinds ...cache.Kind) {
	for _, kind := range kinds {
		if err := s.store.Remove(kind, key); err != nil {
			s.logger.Warn("Failed to roll back partial write", zap.Stringer("key", key), zap.Stringer("kind", kind), zap.Error(err))
		}
	}
}

func (s *Source) tileURL(kind cache.Kind, key tile.Key) string {
	base, apiKey, ext := s.opts.HeightURL, s.opts.HeightKey, s.opts.HeightExt
	if kind == cache.KindOverlay {
		base, apiKey, ext = s.opts.OverlayURL, s.opts.OverlayKey, s.opts.OverlayExt
	}
	return fmt.Sprintf("%s%d/%d/%d.%s?key=%s", base, key.Z, key.X, key.Y, ext, url.QueryEscape(apiKey))
}

func (s *Source) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, classifyTransport(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
	case code == http.StatusNoContent:
		return nil, ErrNoData
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, code)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return data, nil
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
