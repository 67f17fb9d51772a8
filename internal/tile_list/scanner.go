package tile_list

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"terrainstream/internal/cache"
	"terrainstream/internal/tile"
)

type fileInfo struct {
	modTime time.Time
	bytes   int64
}

// Summary describes the outcome of the last Scan.
type Summary struct {
	Tiles    int
	Orphans  int
	Stale    int
	Bytes    int64
	Duration time.Duration
}

// Scanner reconciles the on-disk tile cache at startup: a tile is valid only
// when both its height and overlay files exist.
type Scanner struct {
	store   *cache.FileCache
	logger  *zap.Logger
	summary Summary
}

func New(store *cache.FileCache, logger *zap.Logger) *Scanner {
	return &Scanner{
		store:  store,
		logger: logger,
	}
}

// Scan deletes orphaned files and leftover temp files and returns the valid
// keys ordered by overlay modification time, oldest first.
func (s *Scanner) Scan() ([]tile.Key, error) {
	start := time.Now()
	s.summary = Summary{}

	overlays, err := s.scanDir(cache.KindOverlay)
	if err != nil {
		return nil, err
	}
	heights, err := s.scanDir(cache.KindHeight)
	if err != nil {
		return nil, err
	}

	s.removeOrphans(cache.KindOverlay, overlays, heights)
	s.removeOrphans(cache.KindHeight, heights, overlays)

	keys := make([]tile.Key, 0, len(overlays))
	for key, info := range overlays {
		keys = append(keys, key)
		s.summary.Bytes += info.bytes + heights[key].bytes
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, tj := overlays[keys[i]].modTime, overlays[keys[j]].modTime
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return keys[i].String() < keys[j].String()
	})

	s.summary.Tiles = len(keys)
	s.summary.Duration = time.Since(start)

	s.logger.Info("Disk cache scanned",
		zap.Int("tiles", s.summary.Tiles),
		zap.Int("orphans_removed", s.summary.Orphans),
		zap.Int("stale_temp_removed", s.summary.Stale),
		zap.String("size", humanize.Bytes(uint64(s.summary.Bytes))),
		zap.Duration("duration", s.summary.Duration),
	)

	return keys, nil
}

func (s *Scanner) Summary() Summary {
	return s.summary
}

func (s *Scanner) scanDir(kind cache.Kind) (map[tile.Key]fileInfo, error) {
	dir := s.store.Dir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", kind, err)
	}

	pattern := regexp.MustCompile(`^(\d+)_(\d+)_(\d+)\.` + regexp.QuoteMeta(s.store.Ext(kind)) + `$`)
	found := make(map[tile.Key]fileInfo)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		path := filepath.Join(dir, name)

		// Interrupted atomic writes leave temp files behind.
		if strings.HasSuffix(name, ".tmp") {
			if err := os.Remove(path); err != nil {
				s.logger.Warn("Failed to delete stale temp file", zap.String("path", path), zap.Error(err))
			} else {
				s.summary.Stale++
			}
			continue
		}

		if !pattern.MatchString(name) {
			s.logger.Warn("Ignoring unrecognized file in cache", zap.String("path", path))
			continue
		}

		key, err := tile.ParseFileBase(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil || !key.Valid() {
			s.logger.Warn("Ignoring invalid tile file", zap.String("path", path), zap.Error(err))
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("Error getting file info", zap.String("path", path), zap.Error(err))
			continue
		}

		found[key] = fileInfo{modTime: info.ModTime(), bytes: info.Size()}
	}

	return found, nil
}

// removeOrphans deletes every file of kind in files that has no counterpart
// in other, and forgets it.
func (s *Scanner) removeOrphans(kind cache.Kind, files, other map[tile.Key]fileInfo) {
	for key := range files {
		if _, ok := other[key]; ok {
			continue
		}

		delete(files, key)
		if err := s.store.Remove(kind, key); err != nil {
			s.logger.Warn("Failed to delete orphaned file", zap.Stringer("key", key), zap.Stringer("kind", kind), zap.Error(err))
			continue
		}
		s.summary.Orphans++
		s.logger.Info("Deleted orphaned file", zap.Stringer("key", key), zap.Stringer("kind", kind))
	}
}
