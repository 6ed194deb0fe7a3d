package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// Config holds the server configuration.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string // empty disables authentication

	MaxUploadBytes int64
	RateLimit      int
	RateWindow     time.Duration

	LogLevel  string
	LogFormat string

	NATSURL           string // empty disables event publishing
	NATSSubjectPrefix string

	MaxTimeGap      time.Duration
	StopTolerance   float64
	MinStopDuration time.Duration
	Metric          segmenter.Metric
}

// Load reads the configuration from the environment, after loading an
// optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getenvDefault("PORT", ":8080"),
		DBPath:            getenvDefault("DB_PATH", "./data/standstill.db"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFormat:         getenvDefault("LOG_FORMAT", "json"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "standstill"),
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	var err error
	if cfg.MaxUploadBytes, err = getenvInt64("MAX_UPLOAD_BYTES", 32<<20); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %d", cfg.MaxUploadBytes)
	}

	limit, err := getenvInt64("RATE_LIMIT", 120)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %d", limit)
	}
	cfg.RateLimit = int(limit)

	window, err := getenvInt64("RATE_WINDOW_SEC", 60)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		return nil, fmt.Errorf("invalid RATE_WINDOW_SEC: %d", window)
	}
	cfg.RateWindow = time.Duration(window) * time.Second

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	if cfg.MaxTimeGap, err = getenvDuration("DEFAULT_MAX_TIME_GAP", segmenter.DefaultMaxTimeGap); err != nil {
		return nil, err
	}
	if cfg.MinStopDuration, err = getenvDuration("DEFAULT_MIN_STOP_DURATION", segmenter.DefaultMinStopDuration); err != nil {
		return nil, err
	}
	cfg.StopTolerance = segmenter.DefaultStopTolerance
	if v := os.Getenv("DEFAULT_STOP_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFAULT_STOP_TOLERANCE: %q", v)
		}
		cfg.StopTolerance = f
	}
	if cfg.Metric, err = segmenter.ParseMetric(os.Getenv("DEFAULT_DISTANCE_METRIC")); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_DISTANCE_METRIC: %w", err)
	}

	if err := cfg.Segmenter().Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmentation defaults: %w", err)
	}

	return cfg, nil
}

// Segmenter returns the server-wide segmentation defaults.
func (c *Config) Segmenter() segmenter.Config {
	return segmenter.Config{
		MaxTimeGap:      c.MaxTimeGap,
		StopTolerance:   c.StopTolerance,
		MinStopDuration: c.MinStopDuration,
		Metric:          c.Metric,
	}
}

// AuthEnabled reports whether API requests need a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt64(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

// getenvDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(sec) || math.Abs(sec) > float64(math.MaxInt64/int64(time.Second)) {
			return 0, fmt.Errorf("invalid %s: %q out of range", k, v)
		}
		return time.Duration(sec * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return d, nil
}
