package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

const (
	MaxMemoryCacheSize = 500
	MaxLoadWorkers     = 8
	MaxZoomLimit       = 30
	diskToMemoryRatio  = 4
)

type Config struct {
	CacheDir   string `yaml:"cache_dir"`
	HeightExt  string `yaml:"height_ext"`
	OverlayExt string `yaml:"overlay_ext"`

	MemoryCacheSize int    `yaml:"memory_cache_size"`
	DiskCacheSize   int    `yaml:"disk_cache_size"`
	LoadWorkers     int    `yaml:"load_workers"`
	MaxZoom         uint32 `yaml:"max_zoom"`

	HeightURL         string        `yaml:"height_url"`
	HeightKey         string        `yaml:"height_key"`
	OverlayURL        string        `yaml:"overlay_url"`
	OverlayKey        string        `yaml:"overlay_key"`
	Offline           bool          `yaml:"offline"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	OfflineCooldown   time.Duration `yaml:"offline_cooldown"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	OverlaySize    int `yaml:"overlay_size"`
	OverlayQuality int `yaml:"overlay_quality"`

	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	LogEncoding     string        `yaml:"log_encoding"`
	VipsMaxCacheMB  int           `yaml:"vips_max_cache_mb"`
	VipsConcurrency int           `yaml:"vips_concurrency"`
	TickInterval    time.Duration `yaml:"tick_interval"`

	// Reference flight, degrees and world units.
	CameraLon      float64 `yaml:"camera_lon"`
	CameraLat      float64 `yaml:"camera_lat"`
	CameraAltitude float64 `yaml:"camera_altitude"`
	CameraPitch    float64 `yaml:"camera_pitch"`
	CameraSpeed    float64 `yaml:"camera_speed"`
}

func defaults() Config {
	return Config{
		CacheDir:          "/data/cache",
		HeightExt:         "webp",
		OverlayExt:        "jpg",
		MemoryCacheSize:   200,
		DiskCacheSize:     4000,
		LoadWorkers:       4,
		MaxZoom:           16,
		RequestTimeout:    5 * time.Second,
		OfflineCooldown:   5 * time.Second,
		RequestsPerSecond: 0,
		OverlaySize:       256,
		OverlayQuality:    85,
		Port:              8080,
		LogLevel:          "info",
		LogEncoding:       "json",
		VipsMaxCacheMB:    64,
		VipsConcurrency:   1,
		TickInterval:      50 * time.Millisecond,
		CameraLon:         8.55,
		CameraLat:         47.37,
		CameraAltitude:    20,
		CameraPitch:       30,
		CameraSpeed:       0.01,
	}
}

// Load builds the config from defaults, the optional CONFIG_FILE and then the
// environment, in that order of increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.HeightExt = getEnv("HEIGHT_EXT", cfg.HeightExt)
	cfg.OverlayExt = getEnv("OVERLAY_EXT", cfg.OverlayExt)
	cfg.MemoryCacheSize = getEnvInt("MEMORY_CACHE_SIZE", cfg.MemoryCacheSize)
	cfg.DiskCacheSize = getEnvInt("DISK_CACHE_SIZE", cfg.DiskCacheSize)
	cfg.LoadWorkers = getEnvInt("LOAD_WORKERS", cfg.LoadWorkers)
	cfg.MaxZoom = uint32(getEnvInt("MAX_ZOOM", int(cfg.MaxZoom)))
	cfg.HeightURL = getEnv("HEIGHT_URL", cfg.HeightURL)
	cfg.HeightKey = getEnv("HEIGHT_KEY", cfg.HeightKey)
	cfg.OverlayURL = getEnv("OVERLAY_URL", cfg.OverlayURL)
	cfg.OverlayKey = getEnv("OVERLAY_KEY", cfg.OverlayKey)
	cfg.Offline = getEnvBool("OFFLINE", cfg.Offline)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.OfflineCooldown = getEnvDuration("OFFLINE_COOLDOWN", cfg.OfflineCooldown)
	cfg.RequestsPerSecond = getEnvFloat("REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	cfg.OverlaySize = getEnvInt("OVERLAY_SIZE", cfg.OverlaySize)
	cfg.OverlayQuality = getEnvInt("OVERLAY_QUALITY", cfg.OverlayQuality)
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogEncoding = getEnv("LOG_ENCODING", cfg.LogEncoding)
	cfg.VipsMaxCacheMB = getEnvInt("VIPS_MAX_CACHE_MB", cfg.VipsMaxCacheMB)
	cfg.VipsConcurrency = getEnvInt("VIPS_CONCURRENCY", cfg.VipsConcurrency)
	cfg.TickInterval = getEnvDuration("TICK_INTERVAL", cfg.TickInterval)
	cfg.CameraLon = getEnvFloat("CAMERA_LON", cfg.CameraLon)
	cfg.CameraLat = getEnvFloat("CAMERA_LAT", cfg.CameraLat)
	cfg.CameraAltitude = getEnvFloat("CAMERA_ALTITUDE", cfg.CameraAltitude)
	cfg.CameraPitch = getEnvFloat("CAMERA_PITCH", cfg.CameraPitch)
	cfg.CameraSpeed = getEnvFloat("CAMERA_SPEED", cfg.CameraSpeed)

	cfg.HeightExt = strings.TrimPrefix(cfg.HeightExt, ".")
	cfg.OverlayExt = strings.TrimPrefix(cfg.OverlayExt, ".")

	return &cfg, nil
}

// Validate reports every violated bound at once. Each error wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.CacheDir) == "" {
		invalid("cache dir is required")
	}
	if c.HeightExt == "" || c.OverlayExt == "" {
		invalid("tile extensions are required")
	}
	if c.MemoryCacheSize < 1 || c.MemoryCacheSize > MaxMemoryCacheSize {
		invalid("memory cache size %d out of range 1..%d", c.MemoryCacheSize, MaxMemoryCacheSize)
	}
	if c.DiskCacheSize < diskToMemoryRatio*c.MemoryCacheSize {
		invalid("disk cache size %d must be at least %d times the memory cache size %d",
			c.DiskCacheSize, diskToMemoryRatio, c.MemoryCacheSize)
	}
	if c.LoadWorkers < 1 || c.LoadWorkers > MaxLoadWorkers {
		invalid("load workers %d out of range 1..%d", c.LoadWorkers, MaxLoadWorkers)
	}
	if c.MaxZoom >= MaxZoomLimit {
		invalid("max zoom %d must be below %d", c.MaxZoom, MaxZoomLimit)
	}
	if !c.Offline {
		if c.HeightURL == "" || c.HeightKey == "" {
			invalid("height url and key are required unless offline")
		}
		if c.OverlayURL == "" || c.OverlayKey == "" {
			invalid("overlay url and key are required unless offline")
		}
	}
	if c.RequestTimeout <= 0 {
		invalid("request timeout must be positive")
	}
	if c.OfflineCooldown < 0 {
		invalid("offline cooldown must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		invalid("requests per second must not be negative")
	}
	if c.OverlayQuality < 1 || c.OverlayQuality > 100 {
		invalid("overlay quality %d out of range 1..100", c.OverlayQuality)
	}
	if c.TickInterval <= 0 {
		invalid("tick interval must be positive")
	}
	if c.CameraLat < -85 || c.CameraLat > 85 {
		invalid("camera latitude %g out of range -85..85", c.CameraLat)
	}
	if c.CameraAltitude <= 0 {
		invalid("camera altitude must be positive")
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
