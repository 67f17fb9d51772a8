package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedKey = errors.New("malformed tile key")

// Key is a quadtree tile address in the XYZ scheme.
type Key struct {
	X uint32
	Y uint32
	Z uint32
}

// Root is the single zoom 0 tile covering the whole globe.
var Root = Key{}

func New(x, y, z uint32) Key {
	return Key{X: x, Y: y, Z: z}
}

// Parse is the inverse of Key.String.
func Parse(s string) (Key, error) {
	return parseSeparated(s, "/")
}

// ParseFileBase is the inverse of Key.FileBase.
func ParseFileBase(s string) (Key, error) {
	return parseSeparated(s, "_")
}

func parseSeparated(s, sep string) (Key, error) {
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}

	var vals [3]uint32
	for i, p := range parts {
		// ParseUint accepts a leading '+', which String never produces.
		if p == "" || p[0] < '0' || p[0] > '9' {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
		}
		// Reject leading zeros so that parsing stays a strict inverse.
		if len(p) > 1 && p[0] == '0' {
			return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Key{}, fmt.Errorf("%w: %q: %v", ErrMalformedKey, s, err)
		}
		vals[i] = uint32(v)
	}

	return Key{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.X, k.Y, k.Z)
}

// FileBase is the key as used in disk cache file names, without extension.
func (k Key) FileBase() string {
	return fmt.Sprintf("%d_%d_%d", k.X, k.Y, k.Z)
}

func (k Key) IsRoot() bool {
	return k == Root
}

// Valid reports whether x and y lie inside the 2^z grid.
func (k Key) Valid() bool {
	return k.Z < 32 && uint64(k.X) < 1<<k.Z && uint64(k.Y) < 1<<k.Z
}

func (k Key) TopLeft() Key {
	return Key{X: k.X * 2, Y: k.Y * 2, Z: k.Z + 1}
}

func (k Key) TopRight() Key {
	return Key{X: k.X*2 + 1, Y: k.Y * 2, Z: k.Z + 1}
}

func (k Key) BottomLeft() Key {
	return Key{X: k.X * 2, Y: k.Y*2 + 1, Z: k.Z + 1}
}

func (k Key) BottomRight() Key {
	return Key{X: k.X*2 + 1, Y: k.Y*2 + 1, Z: k.Z + 1}
}

// Children returns the four children in top-left, top-right, bottom-left,
// bottom-right order.
func (k Key) Children() [4]Key {
	return [4]Key{k.TopLeft(), k.TopRight(), k.BottomLeft(), k.BottomRight()}
}

// Parent returns the enclosing tile one level up. The root has no parent.
func (k Key) Parent() (Key, bool) {
	if k.Z == 0 {
		return k, false
	}
	return Key{X: k.X / 2, Y: k.Y / 2, Z: k.Z - 1}, true
}

// Contains reports whether other lies inside k's footprint at any depth,
// including k itself.
func (k Key) Contains(other Key) bool {
	if other.Z < k.Z {
		return false
	}
	shift := other.Z - k.Z
	return other.X>>shift == k.X && other.Y>>shift == k.Y
}
