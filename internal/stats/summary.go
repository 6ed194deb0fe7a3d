// Package stats summarizes segmentation results.
package stats

import (
	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// Distribution is a five point summary of a sample of values.
type Distribution struct {
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// Describe summarizes values. An empty sample gives the zero Distribution.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	p := Percentiles(values, 0, 50, 90, 100)
	return Distribution{Min: p[0], Median: p[1], P90: p[2], Max: p[3], Total: Sum(values)}
}

// Summary describes one segmentation result.
type Summary struct {
	Stops  int `json:"stops"`
	Routes int `json:"routes"`

	// SpanSeconds runs from the start of the first segment to the end of the last.
	SpanSeconds float64 `json:"spanSeconds"`
	// GapSeconds is the time inside the track covered by neither stops nor routes.
	GapSeconds float64 `json:"gapSeconds"`

	StopSeconds     Distribution `json:"stopSeconds"`
	RouteSeconds    Distribution `json:"routeSeconds"`
	RouteMeters     Distribution `json:"routeMeters"`
	MeanRouteSpeed  float64      `json:"meanRouteSpeed"` // m/s over all routes
	StationaryShare float64      `json:"stationaryShare"`
}

// Summarize computes a Summary of res.
func Summarize(res *segmenter.Result) Summary {
	stops, routes := res.Stops(), res.Routes()

	stopSecs := make([]float64, len(stops))
	for i, s := range stops {
		stopSecs[i] = s.Duration().Seconds()
	}
	routeSecs := make([]float64, len(routes))
	routeMeters := make([]float64, len(routes))
	for i, r := range routes {
		routeSecs[i] = r.Duration().Seconds()
		routeMeters[i] = r.DistanceMeters()
	}

	sum := Summary{
		Stops:        len(stops),
		Routes:       len(routes),
		StopSeconds:  Describe(stopSecs),
		RouteSeconds: Describe(routeSecs),
		RouteMeters:  Describe(routeMeters),
	}

	if n := len(res.Segments); n > 0 {
		sum.SpanSeconds = res.Segments[n-1].End().Sub(res.Segments[0].Start()).Seconds()
	}
	covered := sum.StopSeconds.Total + sum.RouteSeconds.Total
	if gap := sum.SpanSeconds - covered; gap > 0 {
		sum.GapSeconds = gap
	}
	if sum.RouteSeconds.Total > 0 {
		sum.MeanRouteSpeed = sum.RouteMeters.Total / sum.RouteSeconds.Total
	}
	if sum.SpanSeconds > 0 {
		sum.StationaryShare = sum.StopSeconds.Total / sum.SpanSeconds
	}
	return sum
}
