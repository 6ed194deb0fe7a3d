package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisndirangu54/standstill/internal/database"
	"github.com/chrisndirangu54/standstill/internal/metrics"
	"github.com/chrisndirangu54/standstill/internal/models"
	"github.com/chrisndirangu54/standstill/internal/publisher"
	"github.com/chrisndirangu54/standstill/internal/repository"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/spatial"
	"github.com/chrisndirangu54/standstill/internal/trackio"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []publisher.RunEvent
}

func (p *recordingPublisher) PublishRunEvent(ev publisher.RunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Status
	}
	return out
}

type fixture struct {
	svc     *SegmentService
	pub     *recordingPublisher
	metrics *metrics.Collector
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "svc.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrationManager(db, nil).RunMigrations())

	f := &fixture{pub: &recordingPublisher{}, metrics: metrics.NewCollector()}
	f.svc = NewSegmentService(repository.NewRunRepository(db), segmenter.Config{}, f.metrics, f.pub, nil)

	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

// lineFeature renders a GeoJSON Feature with a LineString and coordTimes.
func lineFeature(name string, coords [][2]float64, times []string) string {
	c, _ := json.Marshal(coords)
	ts, _ := json.Marshal(times)
	return fmt.Sprintf(`{"type":"Feature","properties":{"name":%q,"coordTimes":%s},"geometry":{"type":"LineString","coordinates":%s}}`,
		name, ts, c)
}

// commute is stop, route, stop: two minutes still, three moving, two still.
func commute() string {
	coords := [][2]float64{
		{10.0, 59.0}, {10.0001, 59.0}, {10.0, 59.0001},
		{10.01, 59.0}, {10.02, 59.0}, {10.03, 59.0},
		{10.0301, 59.0}, {10.0302, 59.0},
	}
	times := make([]string, len(coords))
	for i := range coords {
		times[i] = fmt.Sprintf("2016-02-02T10:%02d:00Z", i)
	}
	return lineFeature("commute", coords, times)
}

func TestSegmentService_Preview(t *testing.T) {
	f := setupService(t)

	out, err := f.svc.Preview(context.Background(), strings.NewReader(commute()), Options{
		Format: trackio.FormatGeoJSON,
		Config: segmenter.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Len(t, out.Stops.Features, 2)
	assert.Len(t, out.Routes.Features, 1)
	assert.Equal(t, "2016-02-02T10:00:00Z", out.Stops.Features[0].Properties["startTime"])

	runs, total, err := f.svc.ListRuns(models.RunFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "preview must not store a run")
	assert.Empty(t, runs)
	assert.Empty(t, f.pub.statuses())
}

func TestSegmentService_Submit(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	run, err := f.svc.Submit(ctx, strings.NewReader(commute()), Options{
		Format: trackio.FormatGeoJSON,
		Config: segmenter.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, "commute", run.Name)
	assert.Equal(t, 8, run.SampleCount)
	assert.Equal(t, 2, run.StopCount)
	assert.Equal(t, 1, run.RouteCount)
	assert.Equal(t, []string{models.RunStatusPending, models.RunStatusRunning, models.RunStatusCompleted}, f.pub.statuses())

	stored, err := f.svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Name, stored.Name)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)

	stops, total, err := f.svc.GetStops(run.ID, models.StopFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, stops, 2)

	// finer than the stored geohash precision
	fine := spatial.EncodeGeohash(stops[1].Lat, stops[1].Lon, 9)
	near, _, err := f.svc.GetStops(run.ID, models.StopFilter{Geohash: fine})
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, stops[1].Seq, near[0].Seq)

	routes, total, err := f.svc.GetRoutes(run.ID, models.RouteFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, routes, 1)

	out, err := f.svc.GetGeoJSON(run.ID)
	require.NoError(t, err)
	assert.Len(t, out.Stops.Features, 2)
	assert.Len(t, out.Routes.Features, 1)

	sum, err := f.svc.GetSummary(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Stops)
	assert.Equal(t, 240.0, sum.StopSeconds.Total)
	assert.Equal(t, 420.0, sum.SpanSeconds)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(models.RunStatusCompleted)))
	assert.Equal(t, 8.0, testutil.ToFloat64(f.metrics.SamplesSegmented))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StopsDetected))

	require.NoError(t, f.svc.DeleteRun(run.ID))
	_, err = f.svc.GetRun(run.ID)
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestSegmentService_SubmitKeepsExplicitName(t *testing.T) {
	f := setupService(t)

	run, err := f.svc.Submit(context.Background(), strings.NewReader(commute()), Options{
		Format: trackio.FormatGeoJSON,
		Name:   "monday",
		Config: segmenter.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, "monday", run.Name)
}

func TestSegmentService_SubmitZeroMinStopDuration(t *testing.T) {
	f := setupService(t)

	input := lineFeature("pause", [][2]float64{{10.00, 59.0}, {10.01, 59.0}, {10.0101, 59.0}, {10.02, 59.0}},
		[]string{"2016-02-02T10:00:00Z", "2016-02-02T10:01:00Z", "2016-02-02T10:01:30Z", "2016-02-02T10:02:30Z"})
	opts, err := ResolveOptions(SegmentParams{MinStopDuration: "0"}, "", f.svc.Defaults())
	require.NoError(t, err)

	run, err := f.svc.Submit(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, run.StopCount)

	stored, err := f.svc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.MinStopDurationMs)

	out, err := f.svc.Preview(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Len(t, out.Stops.Features, 1)
}

func TestSegmentService_SubmitFailures(t *testing.T) {
	backwards := lineFeature("", [][2]float64{{10, 59}, {10, 59}, {10.1, 59}},
		[]string{"2016-02-02T10:00:00Z", "2016-02-02T10:05:00Z", "2016-02-02T10:01:00Z"})

	tests := []struct {
		name    string
		input   string
		format  trackio.Format
		wantErr error
		decode  bool
	}{
		{name: "malformed json", input: `{"type":`, format: trackio.FormatGeoJSON, wantErr: trackio.ErrDecode, decode: true},
		{name: "not a feature", input: `{"type":"FeatureCollection","features":[]}`, format: trackio.FormatGeoJSON, wantErr: trackio.ErrDecode, decode: true},
		{name: "time goes backwards", input: backwards, format: trackio.FormatGeoJSON, wantErr: segmenter.ErrInvalidInput},
		{name: "unsupported format", input: "", format: trackio.Format("kml"), wantErr: trackio.ErrUnsupportedFormat, decode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupService(t)

			run, err := f.svc.Submit(context.Background(), strings.NewReader(tt.input), Options{
				Format: tt.format,
				Config: segmenter.DefaultConfig(),
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			require.NotNil(t, run)
			assert.Equal(t, models.RunStatusFailed, run.Status)
			assert.NotEmpty(t, run.ErrorMessage)

			stored, err := f.svc.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RunStatusFailed, stored.Status)
			assert.Equal(t, run.ErrorMessage, stored.ErrorMessage)

			statuses := f.pub.statuses()
			require.NotEmpty(t, statuses)
			assert.Equal(t, models.RunStatusFailed, statuses[len(statuses)-1])
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues(models.RunStatusFailed)))
			if tt.decode {
				assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecodeErrors.WithLabelValues(string(tt.format))))
			}

			_, _, err = f.svc.GetStops(run.ID, models.StopFilter{})
			assert.ErrorIs(t, err, ErrRunNotCompleted)
			_, err = f.svc.GetGeoJSON(run.ID)
			assert.ErrorIs(t, err, ErrRunNotCompleted)
		})
	}
}

// The output keeps the timestamp layout the track was uploaded with.
func TestSegmentService_GetGeoJSONKeepsTimeLayout(t *testing.T) {
	f := setupService(t)

	input := lineFeature("", [][2]float64{{10.825, 59.921}, {10.8251, 59.9211}},
		[]string{"2016-02-02 12:05:26", "2016-02-02 13:06:39"})
	cfg := segmenter.DefaultConfig()
	cfg.StopTolerance = 0.05
	cfg.MaxTimeGap = 24 * time.Hour

	run, err := f.svc.Submit(context.Background(), strings.NewReader(input), Options{Format: trackio.FormatGeoJSON, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, "2006-01-02 15:04:05", run.TimeLayout)

	out, err := f.svc.GetGeoJSON(run.ID)
	require.NoError(t, err)
	require.Len(t, out.Stops.Features, 1)
	assert.Empty(t, out.Routes.Features)

	props := out.Stops.Features[0].Properties
	assert.Equal(t, "2016-02-02 12:05:26", props["startTime"])
	assert.Equal(t, "2016-02-02 13:06:39", props["endTime"])
	assert.InDelta(t, 3673.0, props["durationSeconds"], 1e-9)
}

func TestSegmentService_Filters(t *testing.T) {
	f := setupService(t)

	_, _, err := f.svc.ListRuns(models.RunFilter{Status: "paused"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = f.svc.GetStops("any", models.StopFilter{Geohash: "u4pa!"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = f.svc.GetStops("any", models.StopFilter{Lat: 91, Radius: 10})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = f.svc.GetStops("missing", models.StopFilter{})
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}
