package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cshum/vipsgen/vips"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"terrainstream/internal/cache"
	"terrainstream/internal/camera"
	"terrainstream/internal/config"
	"terrainstream/internal/geo"
	httphandlers "terrainstream/internal/http"
	"terrainstream/internal/logger"
	"terrainstream/internal/manager"
	"terrainstream/internal/metrics"
	"terrainstream/internal/overlay"
	"terrainstream/internal/tile_list"
	"terrainstream/internal/tile_source"
	"terrainstream/internal/worker"
)

const statsLogInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.VipsConcurrency,
		MaxCacheMem:      cfg.VipsMaxCacheMB * 1024 * 1024,
		MaxCacheFiles:    0,
		MaxCacheSize:     0,
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)
	defer vips.Shutdown()

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.VipsMaxCacheMB),
		zap.Int("concurrency", cfg.VipsConcurrency),
	)

	log.Info("Starting terrain streamer",
		zap.Int("port", cfg.Port),
		zap.String("cache_dir", cfg.CacheDir),
		zap.Int("memory_cache_size", cfg.MemoryCacheSize),
		zap.Int("disk_cache_size", cfg.DiskCacheSize),
		zap.Int("load_workers", cfg.LoadWorkers),
		zap.Bool("offline", cfg.Offline),
	)

	store, err := cache.NewFileCache(cfg.CacheDir, cfg.HeightExt, cfg.OverlayExt)
	if err != nil {
		log.Fatal("Failed to initialize tile cache", zap.Error(err))
	}

	source := tile_source.New(store, overlay.New(cfg.OverlaySize, cfg.OverlayQuality, log.Named("overlay")), tile_source.Options{
		HeightURL:         cfg.HeightURL,
		HeightKey:         cfg.HeightKey,
		HeightExt:         cfg.HeightExt,
		OverlayURL:        cfg.OverlayURL,
		OverlayKey:        cfg.OverlayKey,
		OverlayExt:        cfg.OverlayExt,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, log.Named("source"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := manager.DefaultOptions()
	opts.MemoryCacheSize = cfg.MemoryCacheSize
	opts.DiskCacheSize = cfg.DiskCacheSize
	opts.MaxZoom = cfg.MaxZoom
	opts.OfflineCooldown = cfg.OfflineCooldown
	opts.Offline = cfg.Offline

	mgr := manager.New(opts, manager.Deps{
		Pool:     worker.NewPool(cfg.LoadWorkers, source, log.Named("worker")),
		Evictor:  worker.NewEvictionWorker(store, log.Named("evictor")),
		Store:    store,
		Scanner:  tile_list.New(store, log.Named("tile_list")),
		Observer: metrics.NewPrometheus(registry),
	}, log.Named("manager"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		log.Fatal("Failed to start manager", zap.Error(err))
	}

	handlers := httphandlers.New(log.Named("http"), mgr, registry)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.Routes(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	flyCtx, stopFlying := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fly(flyCtx, cfg, mgr, log)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	stopFlying()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := mgr.Stop(shutdownCtx); err != nil {
		log.Error("Manager did not stop cleanly", zap.Error(err))
	}

	log.Info("Stopped")
}

// fly drives the manager from the tick loop with a camera drifting east
// over the configured start point.
func fly(ctx context.Context, cfg *config.Config, mgr *manager.Manager, log *zap.Logger) {
	cam := camera.New(camera.Params{
		Location: geo.LonLat{
			Lon: cfg.CameraLon * math.Pi / 180,
			Lat: cfg.CameraLat * math.Pi / 180,
		},
		Altitude: cfg.CameraAltitude,
		Heading:  math.Pi / 2,
		Pitch:    cfg.CameraPitch * math.Pi / 180,
		FOV:      math.Pi / 3,
		Aspect:   16.0 / 9.0,
	})

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	lastLog := last
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p := cam.Params()
			p.Location.Lon += cfg.CameraSpeed * math.Pi / 180 * now.Sub(last).Seconds()
			if p.Location.Lon > math.Pi {
				p.Location.Lon -= 2 * math.Pi
			}
			cam.Set(p)
			last = now

			frame := mgr.Tick(cam)
			if frame.Ground.Collision {
				cam.Lift(frame.Ground.VerticalOffset)
				log.Debug("Camera lifted above terrain",
					zap.Stringer("tile", frame.Ground.Key),
					zap.Float64("offset", frame.Ground.VerticalOffset),
				)
			}

			if now.Sub(lastLog) >= statsLogInterval {
				lastLog = now
				s := mgr.Stats()
				log.Info("Streaming",
					zap.Int("visible", s.Visible),
					zap.Uint32("deepest_zoom", s.DeepestZoom),
					zap.Int("resident", s.ResidentNodes),
					zap.Int("disk_cached", s.DiskCached),
					zap.Int("in_flight", s.InFlight),
					zap.String("requested", humanize.Comma(int64(s.Requested))),
					zap.Bool("offline", s.Offline),
				)
			}
		}
	}
}
