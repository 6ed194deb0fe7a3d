package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/trackio"
)

// SegmentParams are the raw, user supplied segmentation parameters. Empty
// fields keep the server defaults; explicit values, zero included, replace them.
type SegmentParams struct {
	Format          string `form:"format"`
	Name            string `form:"name"`
	MaxTimeGap      string `form:"maxTimeGap"`      // Go duration or seconds
	StopTolerance   string `form:"stopTolerance"`   // degrees
	MinStopDuration string `form:"minStopDuration"` // Go duration or seconds
	Metric          string `form:"metric"`          // planar, greatcircle
}

// Options are validated segmentation parameters.
type Options struct {
	Format trackio.Format
	Name   string
	Config segmenter.Config
}

// ResolveOptions validates p and merges it over defaults. filename, when
// set, is used to guess the format if none was given.
func ResolveOptions(p SegmentParams, filename string, defaults segmenter.Config) (Options, error) {
	var opts Options
	var err error

	switch {
	case p.Format != "":
		if opts.Format, err = trackio.ParseFormat(p.Format); err != nil {
			return Options{}, err
		}
	case filename != "":
		opts.Format = trackio.DetectFormat(filename)
	default:
		opts.Format = trackio.FormatGeoJSON
	}
	opts.Name = strings.TrimSpace(p.Name)

	cfg := defaults.WithDefaults()
	if p.MaxTimeGap != "" {
		if cfg.MaxTimeGap, err = ParseDuration("maxTimeGap", p.MaxTimeGap); err != nil {
			return Options{}, err
		}
	}
	if p.MinStopDuration != "" {
		if cfg.MinStopDuration, err = ParseDuration("minStopDuration", p.MinStopDuration); err != nil {
			return Options{}, err
		}
	}
	if v := strings.TrimSpace(p.StopTolerance); v != "" {
		if cfg.StopTolerance, err = strconv.ParseFloat(v, 64); err != nil {
			return Options{}, &segmenter.ConfigError{Field: "stopTolerance", Reason: fmt.Sprintf("not a number: %q", v)}
		}
	}
	if p.Metric != "" {
		if cfg.Metric, err = segmenter.ParseMetric(p.Metric); err != nil {
			return Options{}, err
		}
	}

	opts.Config = cfg
	if err := opts.Config.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// maxDurationSeconds is the largest number of seconds a time.Duration holds.
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))

// ParseDuration parses a Go duration ("90s", "1h30m") or a bare number of
// seconds. The empty string is the zero duration.
func ParseDuration(field, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(sec) || math.Abs(sec) > maxDurationSeconds {
			return 0, &segmenter.ConfigError{Field: field, Reason: fmt.Sprintf("duration out of range: %q", v)}
		}
		return time.Duration(sec * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &segmenter.ConfigError{Field: field, Reason: fmt.Sprintf("not a duration: %q", v)}
	}
	return d, nil
}
