package tile_list

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"terrainstream/internal/cache"
	"terrainstream/internal/tile"
)

func writePair(t *testing.T, store *cache.FileCache, key tile.Key, mtime time.Time) {
	t.Helper()
	require.NoError(t, store.Write(cache.KindHeight, key, []byte("h")))
	require.NoError(t, store.Write(cache.KindOverlay, key, []byte("o")))
	require.NoError(t, os.Chtimes(store.Path(cache.KindOverlay, key), mtime, mtime))
}

func TestScanPairsAndOrdersByOverlayTime(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir(), "webp", "jpg")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	writePair(t, store, tile.New(1, 1, 1), base.Add(2*time.Minute))
	writePair(t, store, tile.Root, base)
	writePair(t, store, tile.New(3, 2, 2), base.Add(time.Minute))

	keys, err := New(store, zap.NewNop()).Scan()
	require.NoError(t, err)
	assert.Equal(t, []tile.Key{tile.Root, tile.New(3, 2, 2), tile.New(1, 1, 1)}, keys)
}

func TestScanRemovesOrphans(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir(), "webp", "jpg")
	require.NoError(t, err)

	now := time.Now()
	for i := uint32(0); i < 4; i++ {
		writePair(t, store, tile.New(i, 0, 2), now)
	}

	heightOnly := tile.New(0, 1, 1)
	overlayOnly := tile.New(1, 0, 1)
	require.NoError(t, store.Write(cache.KindHeight, heightOnly, []byte("h")))
	require.NoError(t, store.Write(cache.KindOverlay, overlayOnly, []byte("o")))

	stale := filepath.Join(store.Dir(cache.KindOverlay), "2_0_2.123456.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0644))
	unrelated := filepath.Join(store.Dir(cache.KindHeight), "README")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0644))

	scanner := New(store, zap.NewNop())
	keys, err := scanner.Scan()
	require.NoError(t, err)

	assert.Len(t, keys, 4)
	assert.False(t, store.Has(cache.KindHeight, heightOnly))
	assert.False(t, store.Has(cache.KindOverlay, overlayOnly))
	assert.NoFileExists(t, stale)
	assert.FileExists(t, unrelated)

	summary := scanner.Summary()
	assert.Equal(t, 4, summary.Tiles)
	assert.Equal(t, 2, summary.Orphans)
	assert.Equal(t, 1, summary.Stale)
	assert.EqualValues(t, 8, summary.Bytes)
}

func TestScanIgnoresMalformedNames(t *testing.T) {
	store, err := cache.NewFileCache(t.TempDir(), "webp", "jpg")
	require.NoError(t, err)

	for _, name := range []string{"01_0_1.jpg", "9_0_1.jpg", "1_0_1.png", "a_b_c.jpg"} {
		path := filepath.Join(store.Dir(cache.KindOverlay), name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	keys, err := New(store, zap.NewNop()).Scan()
	require.NoError(t, err)
	assert.Empty(t, keys)

	entries, err := os.ReadDir(store.Dir(cache.KindOverlay))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
