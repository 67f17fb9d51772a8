package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrainstream/internal/tile"
)

func TestFileCache_Layout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir, ".webp", "jpg")
	require.NoError(t, err)

	key := tile.New(3, 5, 4)
	assert.Equal(t, filepath.Join(dir, "heightdata", "3_5_4.webp"), c.Path(KindHeight, key))
	assert.Equal(t, filepath.Join(dir, "overlay", "3_5_4.jpg"), c.Path(KindOverlay, key))

	assert.DirExists(t, filepath.Join(dir, HeightDirName))
	assert.DirExists(t, filepath.Join(dir, OverlayDirName))
}

func TestFileCache_WriteReadRemove(t *testing.T) {
	c, err := NewFileCache(t.TempDir(), "webp", "jpg")
	require.NoError(t, err)
	key := tile.New(1, 1, 1)

	assert.False(t, c.Has(KindHeight, key))
	require.NoError(t, c.Write(KindHeight, key, []byte("height")))
	assert.True(t, c.Has(KindHeight, key))
	assert.False(t, c.Has(KindOverlay, key))

	data, err := c.Read(KindHeight, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("height"), data)

	require.NoError(t, c.Write(KindHeight, key, []byte("replaced")))
	data, err = c.Read(KindHeight, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)

	require.NoError(t, c.Remove(KindHeight, key))
	assert.False(t, c.Has(KindHeight, key))

	err = c.Remove(KindHeight, key)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = c.Read(KindOverlay, key)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileCache_WriteLeavesNoTempFiles(t *testing.T) {
	c, err := NewFileCache(t.TempDir(), "webp", "jpg")
	require.NoError(t, err)

	require.NoError(t, c.Write(KindOverlay, tile.Root, []byte("jpeg")))

	entries, err := os.ReadDir(c.Dir(KindOverlay))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0_0_0.jpg", entries[0].Name())
}
