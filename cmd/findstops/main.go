// Command findstops splits a recorded track into stops and routes and writes
// them as GeoJSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/logger"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/service"
	"github.com/chrisndirangu54/standstill/internal/spatial"
	"github.com/chrisndirangu54/standstill/internal/stats"
	"github.com/chrisndirangu54/standstill/internal/trackio"
	"github.com/chrisndirangu54/standstill/internal/trackio/geojson"
)

const version = "findstops v0.3.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("findstops", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		inputFile       = fs.String("i", "", "Input track file (GeoJSON, GPX or NMEA)")
		outputFile      = fs.String("o", "", "Output base name (default: <input>); \"-\" writes both collections to stdout")
		format          = fs.String("format", "", "Input format: geojson, gpx or nmea (default: from the file extension)")
		maxTimeGap      = fs.String("max-time-gap", "", "Longest gap between samples bridged, as a duration or seconds (default 5m)")
		stopTolerance   = fs.String("stop-tolerance", "", "Stop radius in degrees (default 0.0005)")
		minStopDuration = fs.String("min-stop-duration", "", "Minimum duration of a two-sample stop, as a duration or seconds (default 1m)")
		metric          = fs.String("metric", "", "Distance metric: planar or greatcircle (default planar)")
		showStats       = fs.Bool("stats", false, "Show statistics")
		showVersion     = fs.Bool("version", false, "Show version information")
		verbose         = fs.Bool("v", false, "Log decoder warnings")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "findstops - find stops and routes in a recorded track\n\n")
		fmt.Fprintf(stderr, "usage: findstops -i /path/to/track.geojson\n\n")
		fmt.Fprintf(stderr, "examples:\n")
		fmt.Fprintf(stderr, "  findstops -i commute.gpx\n")
		fmt.Fprintf(stderr, "  findstops -i day.nmea -max-time-gap 10m -stats\n")
		fmt.Fprintf(stderr, "  findstops -i track.geojson -o - | jq .stops\n\n")
		fmt.Fprintf(stderr, "options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	if *inputFile == "" {
		fs.Usage()
		return 2
	}

	level := "error"
	if *verbose {
		level = "warn"
	}
	lg, err := logger.NewWithWriter(level, "console", stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer lg.Sync()

	opts, err := service.ResolveOptions(service.SegmentParams{
		Format:          *format,
		MaxTimeGap:      *maxTimeGap,
		StopTolerance:   *stopTolerance,
		MinStopDuration: *minStopDuration,
		Metric:          *metric,
	}, *inputFile, segmenter.DefaultConfig())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	track, err := readTrack(ctx, *inputFile, opts.Format, lg)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading track: %v\n", err)
		return 1
	}

	start := time.Now()
	res, err := segmenter.RunResolved(track.Samples, opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Error segmenting track: %v\n", err)
		return 1
	}
	elapsed := time.Since(start)

	out := geojson.Encode(res, track.TimeLayout)

	if *outputFile == "-" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
		if *showStats {
			printStats(stderr, track, res, opts.Config, elapsed)
		}
		return 0
	}

	base := *outputFile
	if base == "" {
		base = *inputFile
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	stopsFile, routesFile := base+"_stops.geojson", base+"_routes.geojson"

	if err := writeJSON(stopsFile, out.Stops); err != nil {
		fmt.Fprintf(stderr, "Error writing stops: %v\n", err)
		return 1
	}
	if err := writeJSON(routesFile, out.Routes); err != nil {
		fmt.Fprintf(stderr, "Error writing routes: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%d stops  -> %s\n", len(out.Stops.Features), stopsFile)
	fmt.Fprintf(stdout, "%d routes -> %s\n", len(out.Routes.Features), routesFile)
	if *showStats {
		printStats(stdout, track, res, opts.Config, elapsed)
	}
	return 0
}

func readTrack(ctx context.Context, path string, f trackio.Format, lg *zap.Logger) (*trackio.Track, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return trackio.Decode(ctx, f, file, lg)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printStats(w io.Writer, track *trackio.Track, res *segmenter.Result, cfg segmenter.Config, elapsed time.Duration) {
	points := make([]spatial.Point, len(track.Samples))
	for i, s := range track.Samples {
		points[i] = spatial.Point{Lat: s.Lat, Lon: s.Lon}
	}
	minLat, minLon, maxLat, maxLon := spatial.BoundingBox(points)
	sum := stats.Summarize(res)
	secs := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)).Round(time.Second) }

	fmt.Fprintf(w, "\nSegmentation Statistics:\n")
	fmt.Fprintf(w, "  Samples:   %d (%s)\n", len(track.Samples), track.Format)
	fmt.Fprintf(w, "  Span:      %s (%s in gaps)\n", secs(sum.SpanSeconds), secs(sum.GapSeconds))
	fmt.Fprintf(w, "  Extent:    %.5f,%.5f to %.5f,%.5f (lat,lon)\n", minLat, minLon, maxLat, maxLon)
	fmt.Fprintf(w, "  Stops:     %d, %s stationary (%.0f%%), median %s, longest %s\n",
		sum.Stops, secs(sum.StopSeconds.Total), sum.StationaryShare*100, secs(sum.StopSeconds.Median), secs(sum.StopSeconds.Max))
	fmt.Fprintf(w, "  Routes:    %d, %s moving, %.2f km, %.1f km/h\n",
		sum.Routes, secs(sum.RouteSeconds.Total), sum.RouteMeters.Total/1000, sum.MeanRouteSpeed*3.6)
	fmt.Fprintf(w, "  Settings:  gap %s, tolerance %g deg, min stop %s, %s\n",
		cfg.MaxTimeGap, cfg.StopTolerance, cfg.MinStopDuration, cfg.Metric)
	fmt.Fprintf(w, "  Took:      %s\n", elapsed)
}
