// Package geojson reads a track from a GeoJSON LineString feature and writes
// segmentation results back as GeoJSON feature collections.
//
// Input tracks follow the convention used by togeojson and friends: a Feature
// with a LineString geometry and a parallel "coordTimes" property holding one
// timestamp per coordinate.
package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

var (
	// ErrNotFeature is returned when the document is not a GeoJSON Feature.
	ErrNotFeature = errors.New("geojson: input must be a Feature")
	// ErrUnsupportedGeometry is returned for any geometry other than LineString.
	ErrUnsupportedGeometry = errors.New("geojson: track geometry must be a LineString")
	// ErrTimeMismatch is returned when there is not exactly one timestamp per coordinate.
	ErrTimeMismatch = errors.New("geojson: track must have one timestamp per coordinate")
)

// Track is a decoded input track.
type Track struct {
	Name    string
	Samples []segmenter.Sample

	// TimeLayout is the layout the input timestamps were written in,
	// so output can be written the same way.
	TimeLayout string
}

// DecodeTrack decodes a Feature with a LineString geometry and coordTimes.
func DecodeTrack(data []byte) (*Track, error) {
	var head struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("geojson: failed to parse document: %w", err)
	}
	if head.Type != "Feature" {
		return nil, fmt.Errorf("%w, got type %q", ErrNotFeature, head.Type)
	}
	if len(head.Geometry) == 0 || string(head.Geometry) == "null" {
		return nil, fmt.Errorf("%w, feature has no geometry", ErrUnsupportedGeometry)
	}

	feature, err := orbjson.UnmarshalFeature(data)
	if err != nil {
		return nil, fmt.Errorf("geojson: failed to parse feature: %w", err)
	}

	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		geomType := "none"
		if feature.Geometry != nil {
			geomType = feature.Geometry.GeoJSONType()
		}
		return nil, fmt.Errorf("%w, got %s", ErrUnsupportedGeometry, geomType)
	}

	rawTimes, err := coordTimes(feature.Properties)
	if err != nil {
		return nil, err
	}
	if len(rawTimes) != len(line) {
		return nil, fmt.Errorf("%w: %d coordinates, %d timestamps", ErrTimeMismatch, len(line), len(rawTimes))
	}

	track := &Track{
		Name:    feature.Properties.MustString("name", ""),
		Samples: make([]segmenter.Sample, len(line)),
	}
	for i, pt := range line {
		ts, layout, err := parseTime(rawTimes[i])
		if err != nil {
			return nil, fmt.Errorf("geojson: coordTimes[%d]: %w", i, err)
		}
		if i == 0 {
			track.TimeLayout = layout
		}
		track.Samples[i] = segmenter.Sample{Lon: pt.Lon(), Lat: pt.Lat(), Time: ts}
	}

	return track, nil
}

// coordTimes extracts the per-coordinate timestamps. Tracks exported from
// some devices carry them as positionData[].date instead.
func coordTimes(props orbjson.Properties) ([]interface{}, error) {
	if raw, ok := props["coordTimes"]; ok {
		times, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: coordTimes is not an array", ErrTimeMismatch)
		}
		return times, nil
	}

	if raw, ok := props["positionData"]; ok {
		positions, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: positionData is not an array", ErrTimeMismatch)
		}
		times := make([]interface{}, len(positions))
		for i, p := range positions {
			obj, ok := p.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: positionData[%d] is not an object", ErrTimeMismatch, i)
			}
			times[i] = obj["date"]
		}
		return times, nil
	}

	return nil, fmt.Errorf("%w: missing coordTimes property", ErrTimeMismatch)
}

// LayoutEpochMillis marks input timestamps given as milliseconds since the Unix epoch.
const LayoutEpochMillis = "epoch_ms"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
	"2006/01/02 15:04:05",
}

func parseTime(v interface{}) (time.Time, string, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, layout, nil
			}
		}
		return time.Time{}, "", fmt.Errorf("unrecognized timestamp %q", t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, "", fmt.Errorf("invalid timestamp %v", t)
		}
		return time.UnixMilli(int64(t)).UTC(), LayoutEpochMillis, nil
	default:
		return time.Time{}, "", fmt.Errorf("unsupported timestamp %v (%T)", v, v)
	}
}

// FormatTime writes ts in layout. Unknown or epoch layouts fall back to
// RFC 3339 with fractional seconds.
func FormatTime(ts time.Time, layout string) string {
	if layout == "" || layout == LayoutEpochMillis {
		layout = time.RFC3339Nano
	}
	return ts.Format(layout)
}
