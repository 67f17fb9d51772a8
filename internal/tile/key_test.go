package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	keys := []Key{
		Root,
		New(1, 0, 1),
		New(3, 2, 2),
		New(1023, 511, 10),
		New(1<<31-1, 1<<30, 31),
	}

	for _, k := range keys {
		parsed, err := Parse(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)

		parsed, err = ParseFileBase(k.FileBase())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"1/2",
		"1/2/3/4",
		"a/b/c",
		"-1/0/0",
		"+1/0/0",
		"01/0/1",
		"1//1",
		"1_2_3",
		"99999999999/0/0",
	} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrMalformedKey, "input %q", s)
	}
}

func TestChildren(t *testing.T) {
	k := New(5, 9, 4)
	children := k.Children()

	assert.Equal(t, New(10, 18, 5), children[0])
	assert.Equal(t, New(11, 18, 5), children[1])
	assert.Equal(t, New(10, 19, 5), children[2])
	assert.Equal(t, New(11, 19, 5), children[3])

	seen := map[[2]uint32]bool{}
	for _, c := range children {
		assert.Equal(t, k.Z+1, c.Z)
		seen[[2]uint32{c.X, c.Y}] = true

		parent, ok := c.Parent()
		require.True(t, ok)
		assert.Equal(t, k, parent)
		assert.True(t, k.Contains(c))
	}
	assert.Len(t, seen, 4)
	for _, x := range []uint32{10, 11} {
		for _, y := range []uint32{18, 19} {
			assert.True(t, seen[[2]uint32{x, y}])
		}
	}
}

func TestParentOfRoot(t *testing.T) {
	_, ok := Root.Parent()
	assert.False(t, ok)
	assert.True(t, Root.IsRoot())
}

func TestContains(t *testing.T) {
	k := New(1, 1, 1)
	assert.True(t, k.Contains(k))
	assert.True(t, k.Contains(New(3, 3, 2)))
	assert.True(t, k.Contains(New(7, 4, 3)))
	assert.False(t, k.Contains(New(0, 3, 2)))
	assert.False(t, k.Contains(Root))
	assert.True(t, Root.Contains(New(12, 3, 4)))
}

func TestValid(t *testing.T) {
	assert.True(t, Root.Valid())
	assert.True(t, New(3, 3, 2).Valid())
	assert.False(t, New(4, 0, 2).Valid())
	assert.False(t, New(0, 1, 0).Valid())
}
