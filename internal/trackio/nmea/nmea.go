// Package nmea reads NMEA-0183 logs into samples.
package nmea

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// Decoder turns RMC and GGA sentences into samples.
type Decoder struct {
	scanner  *bufio.Scanner
	logger   *zap.Logger
	lastDate nmea.Date
	lastRMC  time.Time
	refYear  int
}

// NewDecoder returns a decoder reading from r. A nil logger discards warnings.
func NewDecoder(r io.Reader, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{scanner: bufio.NewScanner(r), logger: logger, refYear: time.Now().UTC().Year()}
}

// Decode reads every position sentence until EOF.
func (d *Decoder) Decode(ctx context.Context) ([]segmenter.Sample, error) {
	var samples []segmenter.Sample
	line := 0

	for d.scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}

		sentence, err := nmea.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("nmea: line %d: %w", line, err)
		}

		switch s := sentence.(type) {
		case nmea.RMC:
			d.lastDate = s.Date // GGA sentences carry no date
			if s.Date.Valid {
				d.lastRMC = nmea.DateTime(d.refYear, s.Date, s.Time)
			}
			if s.Validity != nmea.ValidRMC {
				d.logger.Debug("skipping RMC sentence without a valid fix", zap.Int("line", line))
				continue
			}
			samples = append(samples, segmenter.Sample{
				Lon:  s.Longitude,
				Lat:  s.Latitude,
				Time: nmea.DateTime(d.refYear, s.Date, s.Time),
			})

		case nmea.GGA:
			if !d.lastDate.Valid {
				d.logger.Warn("GGA sentence before any sentence with a date; dropping data point",
					zap.Int("line", line), zap.String("raw", s.Raw))
				continue
			}
			if s.FixQuality == nmea.Invalid {
				continue
			}
			samples = append(samples, segmenter.Sample{
				Lon:  s.Longitude,
				Lat:  s.Latitude,
				Time: d.ggaTime(s.Time),
			})

		default:
			// VTG, GSA, GSV and friends carry no position
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("nmea: scanner error: %w", err)
	}

	return dedupe(samples), nil
}

// ggaTime dates a GGA time of day with the last RMC date. A time more than
// half a day before the last RMC fix has crossed midnight.
func (d *Decoder) ggaTime(t nmea.Time) time.Time {
	ts := nmea.DateTime(d.refYear, d.lastDate, t)
	if !ts.IsZero() && !d.lastRMC.IsZero() && d.lastRMC.Sub(ts) > 12*time.Hour {
		ts = ts.AddDate(0, 0, 1)
	}
	return ts
}

// dedupe drops GGA samples that repeat the RMC fix for the same instant.
func dedupe(samples []segmenter.Sample) []segmenter.Sample {
	if len(samples) < 2 {
		return samples
	}
	out := samples[:1]
	for _, s := range samples[1:] {
		if s.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, s)
	}
	return out
}
