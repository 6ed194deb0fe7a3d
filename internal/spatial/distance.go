package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// AngularDistanceDegrees returns the central angle between two points in degrees.
// s2 computes it with a haversine form that stays accurate for sub-meter separations.
func AngularDistanceDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Degrees()
}

// PlanarDistanceDegrees returns the Euclidean length of the coordinate delta in degrees.
func PlanarDistanceDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lon2-lon1, lat2-lat1)
}

// MetersToDegrees converts a ground distance into the central angle it spans.
func MetersToDegrees(meters float64) float64 {
	return meters / EarthRadiusMeters * 180 / math.Pi
}

// DegreesToMeters converts a central angle into a ground distance.
func DegreesToMeters(degrees float64) float64 {
	return degrees * math.Pi / 180 * EarthRadiusMeters
}
