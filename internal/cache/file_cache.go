package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"terrainstream/internal/tile"
)

const (
	HeightDirName  = "heightdata"
	OverlayDirName = "overlay"
)

// FileCache stores tile files on disk.
// Structure: {cacheDir}/heightdata/{x}_{y}_{z}.{heightExt} and
// {cacheDir}/overlay/{x}_{y}_{z}.{overlayExt}
type FileCache struct {
	cacheDir   string
	heightExt  string
	overlayExt string
}

func NewFileCache(cacheDir, heightExt, overlayExt string) (*FileCache, error) {
	c := &FileCache{
		cacheDir:   cacheDir,
		heightExt:  strings.TrimPrefix(heightExt, "."),
		overlayExt: strings.TrimPrefix(overlayExt, "."),
	}

	for _, kind := range Kinds {
		if err := os.MkdirAll(c.Dir(kind), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s cache directory: %w", kind, err)
		}
	}

	return c, nil
}

// Dir is the directory holding all files of the given kind.
func (c *FileCache) Dir(kind Kind) string {
	if kind == KindOverlay {
		return filepath.Join(c.cacheDir, OverlayDirName)
	}
	return filepath.Join(c.cacheDir, HeightDirName)
}

// Ext is the file extension of the given kind, without the dot.
func (c *FileCache) Ext(kind Kind) string {
	if kind == KindOverlay {
		return c.overlayExt
	}
	return c.heightExt
}

func (c *FileCache) Path(kind Kind, key tile.Key) string {
	return filepath.Join(c.Dir(kind), key.FileBase()+"."+c.Ext(kind))
}

func (c *FileCache) Read(kind Kind, key tile.Key) ([]byte, error) {
	data, err := os.ReadFile(c.Path(kind, key))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", kind, key, err)
	}
	return data, nil
}

func (c *FileCache) Has(kind Kind, key tile.Key) bool {
	info, err := os.Stat(c.Path(kind, key))
	return err == nil && info.Mode().IsRegular()
}

// Write stores data atomically: readers never observe a partially written
// file under the final name.
func (c *FileCache) Write(kind Kind, key tile.Key, data []byte) error {
	filePath := c.Path(kind, key)

	tmp, err := os.CreateTemp(filepath.Dir(filePath), key.FileBase()+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}
	return nil
}

// Remove deletes one tile file. A missing file is reported as an error.
func (c *FileCache) Remove(kind Kind, key tile.Key) error {
	if err := os.Remove(c.Path(kind, key)); err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, key, err)
	}
	return nil
}
