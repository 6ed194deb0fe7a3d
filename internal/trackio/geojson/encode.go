package geojson

import (
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// Output holds the two result collections.
type Output struct {
	Stops  *orbjson.FeatureCollection `json:"stops"`
	Routes *orbjson.FeatureCollection `json:"routes"`
}

// Encode converts a segmentation result into stop points and route lines.
// Timestamps are written in layout.
func Encode(res *segmenter.Result, layout string) *Output {
	out := &Output{
		Stops:  orbjson.NewFeatureCollection(),
		Routes: orbjson.NewFeatureCollection(),
	}

	for _, seg := range res.Segments {
		switch s := seg.(type) {
		case *segmenter.Stop:
			out.Stops.Append(StopFeature(s, layout))
		case *segmenter.Route:
			out.Routes.Append(RouteFeature(s, layout))
		}
	}

	return out
}

// StopFeature renders a stop as a Point feature.
func StopFeature(s *segmenter.Stop, layout string) *orbjson.Feature {
	f := orbjson.NewFeature(orb.Point{s.Location.Lon, s.Location.Lat})
	f.Properties["startTime"] = FormatTime(s.StartTime, layout)
	f.Properties["endTime"] = FormatTime(s.EndTime, layout)
	f.Properties["durationSeconds"] = s.Duration().Seconds()
	f.Properties["samples"] = s.Samples
	f.Properties["radiusMeters"] = s.RadiusMeters
	return f
}

// RouteFeature renders a route as a LineString feature with parallel coordTimes.
func RouteFeature(r *segmenter.Route, layout string) *orbjson.Feature {
	line := make(orb.LineString, len(r.Coordinates))
	times := make([]string, len(r.Times))
	for i, c := range r.Coordinates {
		line[i] = orb.Point{c.Lon, c.Lat}
		times[i] = FormatTime(r.Times[i], layout)
	}

	f := orbjson.NewFeature(line)
	f.Properties["coordTimes"] = times
	f.Properties["distanceMeters"] = r.DistanceMeters()
	return f
}
