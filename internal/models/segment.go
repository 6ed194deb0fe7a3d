package models

import (
	"fmt"
	"time"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// StopRecord is a persisted stop of a run
type StopRecord struct {
	RunID           string    `json:"runId" db:"run_id"`
	Seq             int       `json:"seq" db:"seq"` // position among all segments of the run
	FirstIndex      int       `json:"firstIndex" db:"first_index"`
	LastIndex       int       `json:"lastIndex" db:"last_index"`
	Lon             float64   `json:"lon" db:"lon"`
	Lat             float64   `json:"lat" db:"lat"`
	StartTime       time.Time `json:"startTime" db:"start_time"`
	EndTime         time.Time `json:"endTime" db:"end_time"`
	DurationSeconds float64   `json:"durationSeconds" db:"duration_s"`
	SampleCount     int       `json:"sampleCount" db:"sample_count"`
	RadiusMeters    float64   `json:"radiusMeters" db:"radius_m"`
	Geohash         string    `json:"geohash" db:"geohash"`
}

// RouteRecord is a persisted route of a run
type RouteRecord struct {
	RunID          string       `json:"runId" db:"run_id"`
	Seq            int          `json:"seq" db:"seq"`
	FirstIndex     int          `json:"firstIndex" db:"first_index"`
	LastIndex      int          `json:"lastIndex" db:"last_index"`
	StartTime      time.Time    `json:"startTime" db:"start_time"`
	EndTime        time.Time    `json:"endTime" db:"end_time"`
	PointCount     int          `json:"pointCount" db:"point_count"`
	DistanceMeters float64      `json:"distanceMeters" db:"distance_m"`
	Coordinates    [][2]float64 `json:"coordinates" db:"coordinates_json"` // [lon, lat]
	Times          []time.Time  `json:"times" db:"times_json"`
}

// NewStopRecord converts a detected stop.
func NewStopRecord(runID string, seq int, s *segmenter.Stop, geohash string) StopRecord {
	return StopRecord{
		RunID:           runID,
		Seq:             seq,
		FirstIndex:      s.First,
		LastIndex:       s.Last,
		Lon:             s.Location.Lon,
		Lat:             s.Location.Lat,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.Duration().Seconds(),
		SampleCount:     s.Samples,
		RadiusMeters:    s.RadiusMeters,
		Geohash:         geohash,
	}
}

// Stop converts the record back into a segmenter stop.
func (s StopRecord) Stop() *segmenter.Stop {
	return &segmenter.Stop{
		Location:     segmenter.Point{Lon: s.Lon, Lat: s.Lat},
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		First:        s.FirstIndex,
		Last:         s.LastIndex,
		Samples:      s.SampleCount,
		RadiusMeters: s.RadiusMeters,
	}
}

// NewRouteRecord converts a detected route.
func NewRouteRecord(runID string, seq int, r *segmenter.Route) RouteRecord {
	coords := make([][2]float64, len(r.Coordinates))
	for i, c := range r.Coordinates {
		coords[i] = [2]float64{c.Lon, c.Lat}
	}
	return RouteRecord{
		RunID:          runID,
		Seq:            seq,
		FirstIndex:     r.First,
		LastIndex:      r.Last,
		StartTime:      r.Start(),
		EndTime:        r.End(),
		PointCount:     len(r.Coordinates),
		DistanceMeters: r.DistanceMeters(),
		Coordinates:    coords,
		Times:          append([]time.Time(nil), r.Times...),
	}
}

// Route converts the record back into a segmenter route.
func (r RouteRecord) Route() (*segmenter.Route, error) {
	if len(r.Coordinates) != len(r.Times) {
		return nil, fmt.Errorf("route %s/%d has %d coordinates but %d times", r.RunID, r.Seq, len(r.Coordinates), len(r.Times))
	}
	route := &segmenter.Route{
		Coordinates: make([]segmenter.Point, len(r.Coordinates)),
		Times:       append([]time.Time(nil), r.Times...),
		First:       r.FirstIndex,
		Last:        r.LastIndex,
	}
	for i, c := range r.Coordinates {
		route.Coordinates[i] = segmenter.Point{Lon: c[0], Lat: c[1]}
	}
	return route, nil
}
