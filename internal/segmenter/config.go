package segmenter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chrisndirangu54/standstill/internal/spatial"
)

// Defaults are tuned for parked or paused behavior at walking and driving scale.
const (
	DefaultMaxTimeGap      = 5 * time.Minute
	DefaultStopTolerance   = 0.0005 // degrees, roughly 50 m of latitude
	DefaultMinStopDuration = time.Minute
)

// Metric selects how the distance between two positions is measured.
// Every metric returns degrees so StopTolerance keeps a single unit.
type Metric string

const (
	// MetricPlanar compares raw coordinate deltas.
	MetricPlanar Metric = "planar"
	// MetricGreatCircle compares the central angle between the positions.
	MetricGreatCircle Metric = "greatcircle"
)

// ParseMetric parses a metric name. The empty string selects MetricPlanar.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricPlanar, nil
	case MetricPlanar, MetricGreatCircle:
		return m, nil
	case "great-circle", "haversine":
		return MetricGreatCircle, nil
	default:
		return "", &ConfigError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", s)}
	}
}

func (m Metric) distance() (func(a, b Point) float64, bool) {
	switch m {
	case MetricPlanar:
		return func(a, b Point) float64 {
			return spatial.PlanarDistanceDegrees(a.Lat, a.Lon, b.Lat, b.Lon)
		}, true
	case MetricGreatCircle:
		return func(a, b Point) float64 {
			return spatial.AngularDistanceDegrees(a.Lat, a.Lon, b.Lat, b.Lon)
		}, true
	default:
		return nil, false
	}
}

// Config holds the segmentation parameters.
type Config struct {
	// MaxTimeGap is the longest silence between consecutive samples that
	// segmentation bridges. Longer gaps are hard boundaries.
	MaxTimeGap time.Duration `json:"maxTimeGap"`

	// StopTolerance is the distance, in degrees, within which a sample is
	// considered coincident with the open cluster.
	StopTolerance float64 `json:"stopTolerance"`

	// MinStopDuration is how long a two-sample cluster must span to count as a stop.
	MinStopDuration time.Duration `json:"minStopDuration"`

	Metric Metric `json:"metric"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxTimeGap:      DefaultMaxTimeGap,
		StopTolerance:   DefaultStopTolerance,
		MinStopDuration: DefaultMinStopDuration,
		Metric:          MetricPlanar,
	}
}

// WithDefaults fills every zero field from DefaultConfig. Non-zero fields,
// including invalid negative ones, are kept so Validate can reject them.
func (c Config) WithDefaults() Config {
	return c.Merge(DefaultConfig())
}

// Merge fills every zero field of c from base.
func (c Config) Merge(base Config) Config {
	if c.MaxTimeGap == 0 {
		c.MaxTimeGap = base.MaxTimeGap
	}
	if c.StopTolerance == 0 {
		c.StopTolerance = base.StopTolerance
	}
	if c.MinStopDuration == 0 {
		c.MinStopDuration = base.MinStopDuration
	}
	if c.Metric == "" {
		c.Metric = base.Metric
	}
	return c
}

// Validate checks that every field is in range.
func (c Config) Validate() error {
	if c.MaxTimeGap <= 0 {
		return &ConfigError{Field: "maxTimeGap", Reason: fmt.Sprintf("must be positive, got %s", c.MaxTimeGap)}
	}
	if math.IsNaN(c.StopTolerance) || math.IsInf(c.StopTolerance, 0) || c.StopTolerance <= 0 {
		return &ConfigError{Field: "stopTolerance", Reason: fmt.Sprintf("must be a positive number, got %v", c.StopTolerance)}
	}
	if c.MinStopDuration < 0 {
		return &ConfigError{Field: "minStopDuration", Reason: fmt.Sprintf("must not be negative, got %s", c.MinStopDuration)}
	}
	if _, ok := c.Metric.distance(); !ok {
		return &ConfigError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", c.Metric)}
	}
	return nil
}
