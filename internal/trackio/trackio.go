// Package trackio decodes input tracks from the supported container formats.
package trackio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/trackio/geojson"
	"github.com/chrisndirangu54/standstill/internal/trackio/gpx"
	"github.com/chrisndirangu54/standstill/internal/trackio/nmea"
)

var (
	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecode wraps every error caused by malformed input.
	ErrDecode = errors.New("failed to decode track")
)

// Format is an input container format.
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatGPX     Format = "gpx"
	FormatNMEA    Format = "nmea"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGeoJSON, FormatGPX, FormatNMEA:
		return f, nil
	case "json":
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("%w %q (want geojson, gpx or nmea)", ErrUnsupportedFormat, s)
	}
}

// DetectFormat guesses the format from a file name, defaulting to GeoJSON.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		return FormatGPX
	case ".nmea", ".nme", ".log":
		return FormatNMEA
	default:
		return FormatGeoJSON
	}
}

// Track is a decoded input track ready for segmentation.
type Track struct {
	Name    string
	Format  Format
	Samples []segmenter.Sample

	// TimeLayout is how timestamps should be written back out.
	TimeLayout string
}

// Decode reads a whole track in format f from r. Errors caused by the
// input itself match ErrDecode.
func Decode(ctx context.Context, f Format, r io.Reader, logger *zap.Logger) (*Track, error) {
	t, err := decode(ctx, f, r, logger)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return t, nil
}

func decode(ctx context.Context, f Format, r io.Reader, logger *zap.Logger) (*Track, error) {
	switch f {
	case FormatGeoJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		t, err := geojson.DecodeTrack(data)
		if err != nil {
			return nil, err
		}
		return &Track{Name: t.Name, Format: f, Samples: t.Samples, TimeLayout: t.TimeLayout}, nil

	case FormatGPX:
		doc, err := gpx.ParseReader(r)
		if err != nil {
			return nil, err
		}
		samples, err := doc.Samples()
		if err != nil {
			return nil, err
		}
		return &Track{Name: doc.Name(), Format: f, Samples: samples, TimeLayout: time.RFC3339}, nil

	case FormatNMEA:
		samples, err := nmea.NewDecoder(r, logger).Decode(ctx)
		if err != nil {
			return nil, err
		}
		return &Track{Format: f, Samples: samples, TimeLayout: time.RFC3339}, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, f)
	}
}
