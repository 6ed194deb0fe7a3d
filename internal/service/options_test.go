package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/trackio"
)

func TestResolveOptions(t *testing.T) {
	defaults := segmenter.DefaultConfig()

	tests := []struct {
		name     string
		params   SegmentParams
		filename string
		want     Options
		wantErr  error
	}{
		{
			name: "empty keeps defaults",
			want: Options{Format: trackio.FormatGeoJSON, Config: defaults},
		},
		{
			name:     "format from file name",
			filename: "ride.GPX",
			want:     Options{Format: trackio.FormatGPX, Config: defaults},
		},
		{
			name:     "explicit format wins",
			params:   SegmentParams{Format: "nmea"},
			filename: "ride.gpx",
			want:     Options{Format: trackio.FormatNMEA, Config: defaults},
		},
		{
			name: "overrides",
			params: SegmentParams{
				Name:            "  evening run ",
				MaxTimeGap:      "10m",
				StopTolerance:   "0.001",
				MinStopDuration: "90",
				Metric:          "greatcircle",
			},
			want: Options{
				Format: trackio.FormatGeoJSON,
				Name:   "evening run",
				Config: segmenter.Config{
					MaxTimeGap:      10 * time.Minute,
					StopTolerance:   0.001,
					MinStopDuration: 90 * time.Second,
					Metric:          segmenter.MetricGreatCircle,
				},
			},
		},
		{
			name:   "explicit zero min stop duration",
			params: SegmentParams{MinStopDuration: "0"},
			want: Options{Format: trackio.FormatGeoJSON, Config: segmenter.Config{
				MaxTimeGap:      defaults.MaxTimeGap,
				StopTolerance:   defaults.StopTolerance,
				MinStopDuration: 0,
				Metric:          defaults.Metric,
			}},
		},
		{name: "unknown format", params: SegmentParams{Format: "kml"}, wantErr: trackio.ErrUnsupportedFormat},
		{name: "bad duration", params: SegmentParams{MaxTimeGap: "soon"}, wantErr: segmenter.ErrInvalidConfig},
		{name: "zero time gap", params: SegmentParams{MaxTimeGap: "0"}, wantErr: segmenter.ErrInvalidConfig},
		{name: "negative tolerance", params: SegmentParams{StopTolerance: "-1"}, wantErr: segmenter.ErrInvalidConfig},
		{name: "tolerance not a number", params: SegmentParams{StopTolerance: "near"}, wantErr: segmenter.ErrInvalidConfig},
		{name: "unknown metric", params: SegmentParams{Metric: "manhattan"}, wantErr: segmenter.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOptions(tt.params, tt.filename, defaults)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveOptions_ZeroMinStopDurationReachesSegmenter(t *testing.T) {
	opts, err := ResolveOptions(SegmentParams{MinStopDuration: "0"}, "", segmenter.DefaultConfig())
	require.NoError(t, err)

	t0 := time.Date(2016, 2, 2, 10, 0, 0, 0, time.UTC)
	samples := []segmenter.Sample{
		{Lon: 10.00, Lat: 59.0, Time: t0},
		{Lon: 10.01, Lat: 59.0, Time: t0.Add(time.Minute)},
		{Lon: 10.0101, Lat: 59.0, Time: t0.Add(90 * time.Second)},
		{Lon: 10.02, Lat: 59.0, Time: t0.Add(150 * time.Second)},
	}
	res, err := segmenter.RunResolved(samples, opts.Config)
	require.NoError(t, err)
	assert.Len(t, res.Stops(), 1)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("f", "1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = ParseDuration("f", "2.5")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)

	d, err = ParseDuration("f", " ")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDuration("f", "later")
	assert.ErrorIs(t, err, segmenter.ErrInvalidConfig)

	for _, v := range []string{"NaN", "Inf", "-Inf", "1e300", "-1e300", "9223372037"} {
		_, err = ParseDuration("f", v)
		assert.ErrorIs(t, err, segmenter.ErrInvalidConfig, v)
	}

	d, err = ParseDuration("f", "-2")
	require.NoError(t, err)
	assert.Equal(t, -2*time.Second, d)
}
