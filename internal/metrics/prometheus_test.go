package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"terrainstream/internal/manager"
	"terrainstream/internal/tile_source"
	"terrainstream/internal/worker"
)

func TestPrometheusObserver(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry())

	p.OnResponse(worker.OutcomeOK, tile_source.OriginNetwork, 20*time.Millisecond)
	p.OnResponse(worker.OutcomeOK, tile_source.OriginNetwork, 30*time.Millisecond)
	p.OnResponse(worker.OutcomeTimeout, tile_source.OriginNetwork, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.responses.WithLabelValues("ok", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.responses.WithLabelValues("timeout", "network")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.responses.WithLabelValues("ok", "disk")))

	p.OnTick(manager.Stats{ResidentNodes: 7, DiskCached: 30, Offline: true, MemoryEvictions: 3, Deferred: 2})
	p.OnTick(manager.Stats{ResidentNodes: 8, DiskCached: 31, MemoryEvictions: 5, Deferred: 2})

	assert.Equal(t, 8.0, testutil.ToFloat64(p.tiles.WithLabelValues("resident")))
	assert.Equal(t, 31.0, testutil.ToFloat64(p.tiles.WithLabelValues("disk_cached")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.offline))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.evictions.WithLabelValues("memory")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.deferred))
}
