package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"terrainstream/internal/manager"
	"terrainstream/internal/metrics"
)

type staticStats manager.Stats

func (s staticStats) Stats() manager.Stats { return manager.Stats(s) }

func newServer(t *testing.T, stats manager.Stats) (*httptest.Server, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	metrics.NewPrometheus(reg).OnTick(stats)

	h := New(zap.New(core), staticStats(stats), reg)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, logs
}

func TestHandleStats(t *testing.T) {
	srv, logs := newServer(t, manager.Stats{Visible: 12, ResidentNodes: 40, Offline: true, Deferred: 3})

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.EqualValues(t, 12, got["visible"])
	assert.EqualValues(t, 40, got["resident_nodes"])
	assert.Equal(t, true, got["offline"])
	assert.EqualValues(t, 3, got["deferred_total"])

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/api/stats", entries[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
}

func TestHandleStatsRejectsPost(t *testing.T) {
	srv, _ := newServer(t, manager.Stats{})

	resp, err := http.Post(srv.URL+"/api/stats", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, logs := newServer(t, manager.Stats{ResidentNodes: 7})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `terrainstream_tiles{state="resident"} 7`)

	for _, e := range logs.FilterMessage("request").All() {
		assert.Equal(t, zapcore.DebugLevel, e.Level)
	}
}

func TestExtractIP(t *testing.T) {
	h := New(zap.NewNop(), staticStats{}, prometheus.NewRegistry())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", h.extractIP(r))

	r.Header.Set("X-Real-Ip", "192.168.1.9")
	assert.Equal(t, "192.168.1.9", h.extractIP(r))
}
