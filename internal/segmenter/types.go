package segmenter

import (
	"time"

	"github.com/chrisndirangu54/standstill/internal/spatial"
)

// Point is a geographic position in degrees.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Sample is one track position paired with the instant it was recorded.
type Sample struct {
	Lon  float64   `json:"lon"`
	Lat  float64   `json:"lat"`
	Time time.Time `json:"time"`
}

// Point returns the sample's position.
func (s Sample) Point() Point {
	return Point{Lon: s.Lon, Lat: s.Lat}
}

// Kind identifies the type of a Segment.
type Kind int

const (
	KindStop Kind = iota + 1
	KindRoute
)

func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindRoute:
		return "route"
	default:
		return "unknown"
	}
}

// Segment is one piece of a segmented track, either a *Stop or a *Route.
type Segment interface {
	Kind() Kind
	Start() time.Time
	End() time.Time
}

// Stop is a place where the track lingered.
type Stop struct {
	Location  Point     `json:"location"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// First and Last are the indices of the first and last member sample.
	First int `json:"first"`
	Last  int `json:"last"`

	Samples      int     `json:"samples"`
	RadiusMeters float64 `json:"radiusMeters"`
}

func (s *Stop) Kind() Kind       { return KindStop }
func (s *Stop) Start() time.Time { return s.StartTime }
func (s *Stop) End() time.Time   { return s.EndTime }

// Duration returns how long the stop lasted.
func (s *Stop) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Route is a run of samples in motion. Coordinates and Times are parallel.
type Route struct {
	Coordinates []Point     `json:"coordinates"`
	Times       []time.Time `json:"times"`

	First int `json:"first"`
	Last  int `json:"last"`
}

func (r *Route) Kind() Kind { return KindRoute }

func (r *Route) Start() time.Time {
	if len(r.Times) == 0 {
		return time.Time{}
	}
	return r.Times[0]
}

func (r *Route) End() time.Time {
	if len(r.Times) == 0 {
		return time.Time{}
	}
	return r.Times[len(r.Times)-1]
}

// Duration returns the time between the first and last sample of the route.
func (r *Route) Duration() time.Duration {
	return r.End().Sub(r.Start())
}

// DistanceMeters returns the great-circle length of the route path.
func (r *Route) DistanceMeters() float64 {
	points := make([]spatial.Point, len(r.Coordinates))
	for i, c := range r.Coordinates {
		points[i] = spatial.Point{Lat: c.Lat, Lon: c.Lon}
	}
	return spatial.PathLength(points)
}

// Result is the ordered output of one segmentation pass.
type Result struct {
	Segments []Segment
}

// Stops returns the stops in time order.
func (r *Result) Stops() []*Stop {
	var stops []*Stop
	for _, seg := range r.Segments {
		if s, ok := seg.(*Stop); ok {
			stops = append(stops, s)
		}
	}
	return stops
}

// Routes returns the routes in time order.
func (r *Result) Routes() []*Route {
	var routes []*Route
	for _, seg := range r.Segments {
		if rt, ok := seg.(*Route); ok {
			routes = append(routes, rt)
		}
	}
	return routes
}

// Duration sums the time covered by all segments.
func (r *Result) Duration() time.Duration {
	var total time.Duration
	for _, seg := range r.Segments {
		total += seg.End().Sub(seg.Start())
	}
	return total
}
