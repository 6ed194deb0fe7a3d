// Package gpx reads GPX 1.1 tracks into samples.
package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// ErrMissingTime is returned when a track point carries no timestamp.
var ErrMissingTime = errors.New("gpx: track point has no time")

// Point represents a GPS track point
type Point struct {
	Lat       float64   `xml:"lat,attr"`
	Lon       float64   `xml:"lon,attr"`
	Elevation float64   `xml:"ele,omitempty"`
	Time      time.Time `xml:"time,omitempty"`
}

// TrackSegment represents a track segment
type TrackSegment struct {
	Points []Point `xml:"trkpt"`
}

// Track represents a GPX track with segments
type Track struct {
	Name     string         `xml:"name,omitempty"`
	Segments []TrackSegment `xml:"trkseg"`
}

// GPX represents the parts of a GPX document a track is read from
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Tracks  []Track  `xml:"trk"`
}

// ParseReader parses GPX from an io.Reader
func ParseReader(r io.Reader) (*GPX, error) {
	decoder := xml.NewDecoder(r)

	var gpxData GPX
	if err := decoder.Decode(&gpxData); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	return &gpxData, nil
}

// Name returns the name of the first named track.
func (g *GPX) Name() string {
	for _, t := range g.Tracks {
		if t.Name != "" {
			return t.Name
		}
	}
	return ""
}

// Samples flattens every point of every track and segment, in document order.
func (g *GPX) Samples() ([]segmenter.Sample, error) {
	var samples []segmenter.Sample
	for ti, track := range g.Tracks {
		for si, seg := range track.Segments {
			for pi, p := range seg.Points {
				if p.Time.IsZero() {
					return nil, fmt.Errorf("%w (trk %d, trkseg %d, trkpt %d)", ErrMissingTime, ti, si, pi)
				}
				samples = append(samples, segmenter.Sample{Lon: p.Lon, Lat: p.Lat, Time: p.Time})
			}
		}
	}
	return samples, nil
}
