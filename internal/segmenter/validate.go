package segmenter

import (
	"fmt"
	"math"
)

// ValidateSamples checks that samples form a usable track: at least two
// samples, positions in range and timestamps never going backwards.
func ValidateSamples(samples []Sample) error {
	if len(samples) < 2 {
		return &InputError{Index: -1, Reason: fmt.Sprintf("a track needs at least 2 samples, got %d", len(samples))}
	}

	for i, s := range samples {
		if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
			return &InputError{Index: i, Reason: fmt.Sprintf("longitude %v out of range [-180, 180]", s.Lon)}
		}
		if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
			return &InputError{Index: i, Reason: fmt.Sprintf("latitude %v out of range [-90, 90]", s.Lat)}
		}
		if s.Time.IsZero() {
			return &InputError{Index: i, Reason: "missing timestamp"}
		}
		if i > 0 && s.Time.Before(samples[i-1].Time) {
			return &InputError{Index: i, Reason: fmt.Sprintf("timestamp %s is before previous %s",
				s.Time.Format("2006-01-02T15:04:05.999Z07:00"), samples[i-1].Time.Format("2006-01-02T15:04:05.999Z07:00"))}
		}
	}

	return nil
}
