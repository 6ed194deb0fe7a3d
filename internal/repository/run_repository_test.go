package repository

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisndirangu54/standstill/internal/database"
	"github.com/chrisndirangu54/standstill/internal/models"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

var t0 = time.Date(2016, 2, 2, 10, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrationManager(db, nil).RunMigrations())
	return NewRunRepository(db)
}

func track() []segmenter.Sample {
	at := func(lon, lat float64, m int) segmenter.Sample {
		return segmenter.Sample{Lon: lon, Lat: lat, Time: t0.Add(time.Duration(m) * time.Minute)}
	}
	return []segmenter.Sample{
		at(10.0, 59.0, 0), at(10.0001, 59.0, 1), at(10.0, 59.0001, 2),
		at(10.01, 59.0, 3), at(10.02, 59.0, 4), at(10.03, 59.0, 5),
		at(10.0301, 59.0, 6), at(10.0302, 59.0, 7),
	}
}

func completedRun(t *testing.T, repo *RunRepository, created time.Time) (*models.Run, *segmenter.Result) {
	t.Helper()
	cfg := segmenter.DefaultConfig()
	samples := track()

	run := models.NewRun(uuid.NewString(), "commute", "geojson", cfg, created)
	require.NoError(t, repo.Create(run))
	start, end := samples[0].Time, samples[len(samples)-1].Time
	run.SampleCount = len(samples)
	run.TrackStart, run.TrackEnd = &start, &end
	run.TimeLayout = time.RFC3339
	require.NoError(t, repo.MarkRunning(run))

	res, err := segmenter.Run(samples, cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(run, res, created.Add(time.Second)))
	return run, res
}

func TestRunRepository_Lifecycle(t *testing.T) {
	repo := setupRepo(t)
	run, res := completedRun(t, repo, t0)

	got, err := repo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, "commute", got.Name)
	assert.Equal(t, 8, got.SampleCount)
	assert.Equal(t, 2, got.StopCount)
	assert.Equal(t, 1, got.RouteCount)
	require.NotNil(t, got.TrackStart)
	assert.True(t, got.TrackStart.Equal(t0))
	assert.True(t, got.TrackEnd.Equal(t0.Add(7*time.Minute)))
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, segmenter.DefaultConfig(), got.SegmenterConfig())
	assert.True(t, got.Finished())

	rebuilt, err := repo.GetResult(run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(res, rebuilt); diff != "" {
		t.Errorf("rebuilt result differs (-want +got):\n%s", diff)
	}
}

func TestRunRepository_GetStops(t *testing.T) {
	repo := setupRepo(t)
	run, _ := completedRun(t, repo, t0)

	stops, total, err := repo.GetStops(run.ID, models.StopFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, stops, 2)
	assert.Equal(t, 0, stops[0].Seq)
	assert.Equal(t, 2, stops[1].Seq)
	assert.Len(t, stops[0].Geohash, StopGeohashPrecision(segmenter.DefaultStopTolerance))
	assert.InDelta(t, 120, stops[0].DurationSeconds, 1e-9)

	t.Run("geohash prefix", func(t *testing.T) {
		got, total, err := repo.GetStops(run.ID, models.StopFilter{Geohash: stops[1].Geohash})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Seq)

		got, _, err = repo.GetStops(run.ID, models.StopFilter{Geohash: stops[0].Geohash[:3]})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("near a point", func(t *testing.T) {
		got, _, err := repo.GetStops(run.ID, models.StopFilter{Lat: 59.0, Lon: 10.03, Radius: 100})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 5, got[0].FirstIndex)
	})

	t.Run("min duration and paging", func(t *testing.T) {
		got, total, err := repo.GetStops(run.ID, models.StopFilter{MinDuration: 121})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, got)

		got, total, err = repo.GetStops(run.ID, models.StopFilter{Page: 2, PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Seq)
	})
}

func TestRunRepository_GetRoutes(t *testing.T) {
	repo := setupRepo(t)
	run, res := completedRun(t, repo, t0)

	routes, total, err := repo.GetRoutes(run.ID, models.RouteFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, routes, 1)

	want := res.Routes()[0]
	assert.Equal(t, 1, routes[0].Seq)
	assert.Equal(t, len(want.Coordinates), routes[0].PointCount)
	assert.InDelta(t, want.DistanceMeters(), routes[0].DistanceMeters, 1e-6)
	assert.Equal(t, [2]float64{10.0, 59.0001}, routes[0].Coordinates[0])
	assert.True(t, routes[0].Times[0].Equal(want.Times[0]))

	routes, _, err = repo.GetRoutes(run.ID, models.RouteFilter{MinDistance: 1e6})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestRunRepository_ListAndDelete(t *testing.T) {
	repo := setupRepo(t)
	older, _ := completedRun(t, repo, t0)
	newer, _ := completedRun(t, repo, t0.Add(time.Hour))

	failed := models.NewRun(uuid.NewString(), "", "gpx", segmenter.DefaultConfig(), t0.Add(2*time.Hour))
	require.NoError(t, repo.Create(failed))
	require.NoError(t, repo.MarkFailed(failed.ID, "invalid input: sample 3: missing timestamp", t0.Add(2*time.Hour)))

	runs, total, err := repo.List(models.RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{failed.ID, newer.ID, older.ID}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.True(t, strings.Contains(runs[0].ErrorMessage, "missing timestamp"))

	runs, total, err = repo.List(models.RunFilter{Status: models.RunStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, runs, 2)

	require.NoError(t, repo.Delete(older.ID))
	_, err = repo.GetByID(older.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	stops, _, err := repo.GetStops(older.ID, models.StopFilter{})
	require.NoError(t, err)
	assert.Empty(t, stops, "stops should cascade with their run")

	assert.ErrorIs(t, repo.Delete(older.ID), ErrRunNotFound)
	assert.ErrorIs(t, repo.MarkRunning(&models.Run{ID: "missing"}), ErrRunNotFound)
}
