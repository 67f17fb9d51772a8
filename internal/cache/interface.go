package cache

import "terrainstream/internal/tile"

// Kind selects one of the two files that make up a disk cached tile.
type Kind int

const (
	KindHeight Kind = iota
	KindOverlay
)

func (k Kind) String() string {
	switch k {
	case KindHeight:
		return "height"
	case KindOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Kinds lists both tile file kinds in fetch order.
var Kinds = [2]Kind{KindHeight, KindOverlay}

// TileStore is the on-disk half of the tile cache. Implementations must be
// safe for concurrent use by workers handling distinct keys.
type TileStore interface {
	Read(kind Kind, key tile.Key) ([]byte, error)
	Write(kind Kind, key tile.Key, data []byte) error
	Remove(kind Kind, key tile.Key) error
	Has(kind Kind, key tile.Key) bool
	Path(kind Kind, key tile.Key) string
}
