package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"terrainstream/internal/manager"
	"terrainstream/internal/tile_source"
	"terrainstream/internal/worker"
)

// Prometheus implements manager.Observer.
type Prometheus struct {
	loadLatency *prometheus.HistogramVec
	responses   *prometheus.CounterVec
	tiles       *prometheus.GaugeVec
	traversal   *prometheus.GaugeVec
	offline     prometheus.Gauge
	evictions   *prometheus.CounterVec
	deferred    prometheus.Counter

	mu   sync.Mutex
	last manager.Stats
}

func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terrainstream_load_duration_seconds",
			Help:    "Time spent resolving one tile",
			Buckets: prometheus.DefBuckets,
		}, []string{"origin"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terrainstream_load_responses_total",
			Help: "Load responses by outcome and origin",
		}, []string{"outcome", "origin"}),
		tiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "terrainstream_tiles",
			Help: "Tiles by state",
		}, []string{"state"}),
		traversal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "terrainstream_traversal",
			Help: "Per tick traversal figures",
		}, []string{"kind"}),
		offline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terrainstream_offline",
			Help: "1 while network requests are paused",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terrainstream_evictions_total",
			Help: "Cache evictions by cache",
		}, []string{"cache"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terrainstream_deferred_requests_total",
			Help: "Network requests postponed while offline",
		}),
	}

	reg.MustRegister(p.loadLatency, p.responses, p.tiles, p.traversal, p.offline, p.evictions, p.deferred)

	for _, o := range worker.Outcomes() {
		for _, origin := range []tile_source.Origin{tile_source.OriginDisk, tile_source.OriginNetwork} {
			p.responses.WithLabelValues(o.String(), origin.String())
		}
	}
	return p
}

func (p *Prometheus) OnResponse(outcome worker.Outcome, origin tile_source.Origin, d time.Duration) {
	p.responses.WithLabelValues(outcome.String(), origin.String()).Inc()
	if outcome == worker.OutcomeOK {
		p.loadLatency.WithLabelValues(origin.String()).Observe(d.Seconds())
	}
}

func (p *Prometheus) OnTick(s manager.Stats) {
	p.tiles.WithLabelValues("resident").Set(float64(s.ResidentNodes))
	p.tiles.WithLabelValues("disk_cached").Set(float64(s.DiskCached))
	p.tiles.WithLabelValues("in_flight").Set(float64(s.InFlight))
	p.tiles.WithLabelValues("unloadable").Set(float64(s.Unloadable))

	p.traversal.WithLabelValues("traversed").Set(float64(s.Traversed))
	p.traversal.WithLabelValues("visible").Set(float64(s.Visible))
	p.traversal.WithLabelValues("deepest_zoom").Set(float64(s.DeepestZoom))

	if s.Offline {
		p.offline.Set(1)
	} else {
		p.offline.Set(0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	addDelta(p.evictions.WithLabelValues("memory"), s.MemoryEvictions, p.last.MemoryEvictions)
	addDelta(p.evictions.WithLabelValues("disk"), s.DiskEvictions, p.last.DiskEvictions)
	addDelta(p.evictions.WithLabelValues("stalled"), s.StalledEvictions, p.last.StalledEvictions)
	addDelta(p.deferred, s.Deferred, p.last.Deferred)
	p.last = s
}

func addDelta(c prometheus.Counter, now, before uint64) {
	if now > before {
		c.Add(float64(now - before))
	}
}
