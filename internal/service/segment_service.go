package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrisndirangu54/standstill/internal/metrics"
	"github.com/chrisndirangu54/standstill/internal/models"
	"github.com/chrisndirangu54/standstill/internal/publisher"
	"github.com/chrisndirangu54/standstill/internal/repository"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/spatial"
	"github.com/chrisndirangu54/standstill/internal/stats"
	"github.com/chrisndirangu54/standstill/internal/trackio"
	"github.com/chrisndirangu54/standstill/internal/trackio/geojson"
)

var (
	// ErrRunNotCompleted is returned when results are requested for a run
	// that has not completed.
	ErrRunNotCompleted = errors.New("run has not completed")
	// ErrInvalidFilter is returned for malformed listing filters.
	ErrInvalidFilter = errors.New("invalid filter")
)

// SegmentService decodes uploaded tracks, segments them and stores the results
type SegmentService struct {
	repo     *repository.RunRepository
	defaults segmenter.Config
	metrics  *metrics.Collector
	pub      publisher.Publisher
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewSegmentService creates a new segment service. m and pub may be nil.
func NewSegmentService(repo *repository.RunRepository, defaults segmenter.Config, m *metrics.Collector, pub publisher.Publisher, logger *zap.Logger) *SegmentService {
	if pub == nil {
		pub = publisher.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SegmentService{
		repo:     repo,
		defaults: defaults.WithDefaults(),
		metrics:  m,
		pub:      pub,
		logger:   logger.Named("segment"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Defaults returns the server-wide segmentation defaults.
func (s *SegmentService) Defaults() segmenter.Config {
	return s.defaults
}

// Preview segments a track without storing anything.
func (s *SegmentService) Preview(ctx context.Context, r io.Reader, opts Options) (*geojson.Output, error) {
	track, err := s.decode(ctx, r, opts.Format)
	if err != nil {
		return nil, err
	}
	res, err := s.segment(track.Samples, opts.Config)
	if err != nil {
		return nil, err
	}
	return geojson.Encode(res, track.TimeLayout), nil
}

// Submit segments a track and stores the run. The run is persisted before
// decoding, so failures are recorded too; the returned run reflects the
// final status even when an error is returned.
func (s *SegmentService) Submit(ctx context.Context, r io.Reader, opts Options) (*models.Run, error) {
	run := models.NewRun(s.newID(), opts.Name, string(opts.Format), opts.Config, s.now().UTC())
	if err := s.repo.Create(run); err != nil {
		return nil, err
	}
	s.publish(run)
	log := s.logger.With(zap.String("run", run.ID), zap.String("format", run.SourceFormat))

	track, err := s.decode(ctx, r, opts.Format)
	if err != nil {
		return s.fail(run, err, log)
	}
	if run.Name == "" {
		run.Name = track.Name
	}
	run.SampleCount = len(track.Samples)
	run.TimeLayout = track.TimeLayout
	if n := len(track.Samples); n > 0 {
		start, end := track.Samples[0].Time, track.Samples[n-1].Time
		run.TrackStart, run.TrackEnd = &start, &end
	}
	if err := s.repo.MarkRunning(run); err != nil {
		return s.fail(run, err, log)
	}
	s.publish(run)

	res, err := s.segment(track.Samples, opts.Config)
	if err != nil {
		return s.fail(run, err, log)
	}

	completed := s.now().UTC()
	if err := s.repo.Complete(run, res, completed); err != nil {
		return s.fail(run, err, log)
	}
	run.Status = models.RunStatusCompleted
	run.StopCount = len(res.Stops())
	run.RouteCount = len(res.Routes())
	run.CompletedAt = &completed

	s.metrics.RunFinished(run.Status)
	s.publish(run)
	log.Info("run completed",
		zap.Int("samples", run.SampleCount),
		zap.Int("stops", run.StopCount),
		zap.Int("routes", run.RouteCount),
	)
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SegmentService) GetRun(id string) (*models.Run, error) {
	return s.repo.GetByID(id)
}

// ListRuns retrieves runs with filtering and pagination
func (s *SegmentService) ListRuns(filter models.RunFilter) ([]models.Run, int64, error) {
	if filter.Status != "" && !models.ValidRunStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown run status %q", ErrInvalidFilter, filter.Status)
	}
	return s.repo.List(filter)
}

// DeleteRun removes a run and its results
func (s *SegmentService) DeleteRun(id string) error {
	return s.repo.Delete(id)
}

// GetStops retrieves the stops of a completed run. A geohash filter finer
// than the stored precision of the run matches stops inside that cell.
func (s *SegmentService) GetStops(runID string, filter models.StopFilter) ([]models.StopRecord, int64, error) {
	if filter.Geohash != "" {
		if err := spatial.ValidateGeohash(filter.Geohash); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	if filter.Radius < 0 || filter.Lat < -90 || filter.Lat > 90 || filter.Lon < -180 || filter.Lon > 180 {
		return nil, 0, fmt.Errorf("%w: proximity filter out of range", ErrInvalidFilter)
	}
	run, err := s.completedRun(runID)
	if err != nil {
		return nil, 0, err
	}

	if prec := repository.StopGeohashPrecision(run.StopTolerance); len(filter.Geohash) > prec && filter.Radius == 0 {
		lat, lon, err := spatial.DecodeGeohash(filter.Geohash)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		filter.Lat, filter.Lon = lat, lon
		filter.Radius = spatial.GeohashCellSize(len(filter.Geohash))
		filter.Geohash = filter.Geohash[:prec]
	}
	return s.repo.GetStops(runID, filter)
}

// GetRoutes retrieves the routes of a completed run
func (s *SegmentService) GetRoutes(runID string, filter models.RouteFilter) ([]models.RouteRecord, int64, error) {
	if _, err := s.completedRun(runID); err != nil {
		return nil, 0, err
	}
	return s.repo.GetRoutes(runID, filter)
}

// GetGeoJSON renders a completed run as stop and route feature collections,
// with timestamps in the layout of the uploaded track.
func (s *SegmentService) GetGeoJSON(runID string) (*geojson.Output, error) {
	run, err := s.completedRun(runID)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.GetResult(runID)
	if err != nil {
		return nil, err
	}
	return geojson.Encode(res, run.TimeLayout), nil
}

// GetSummary computes duration and distance statistics for a completed run.
func (s *SegmentService) GetSummary(runID string) (*stats.Summary, error) {
	if _, err := s.completedRun(runID); err != nil {
		return nil, err
	}
	res, err := s.repo.GetResult(runID)
	if err != nil {
		return nil, err
	}
	sum := stats.Summarize(res)
	return &sum, nil
}

func (s *SegmentService) completedRun(id string) (*models.Run, error) {
	run, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunNotCompleted, id, run.Status)
	}
	return run, nil
}

func (s *SegmentService) decode(ctx context.Context, r io.Reader, f trackio.Format) (*trackio.Track, error) {
	track, err := trackio.Decode(ctx, f, r, s.logger)
	if err != nil {
		s.metrics.DecodeFailed(string(f))
		return nil, err
	}
	return track, nil
}

func (s *SegmentService) segment(samples []segmenter.Sample, cfg segmenter.Config) (*segmenter.Result, error) {
	start := time.Now()
	res, err := segmenter.RunResolved(samples, cfg)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSegmentation(len(samples), len(res.Stops()), len(res.Routes()), time.Since(start))
	return res, nil
}

func (s *SegmentService) fail(run *models.Run, cause error, log *zap.Logger) (*models.Run, error) {
	completed := s.now().UTC()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &completed

	if err := s.repo.MarkFailed(run.ID, run.ErrorMessage, completed); err != nil {
		log.Error("failed to record run failure", zap.Error(err), zap.NamedError("cause", cause))
	}
	s.metrics.RunFinished(run.Status)
	s.publish(run)

	if errors.Is(cause, segmenter.ErrInvariant) {
		log.Error("run failed", zap.Error(cause))
	} else {
		log.Info("run failed", zap.Error(cause))
	}
	return run, cause
}

func (s *SegmentService) publish(run *models.Run) {
	ev := publisher.RunEvent{
		RunID:        run.ID,
		Name:         run.Name,
		Status:       run.Status,
		SampleCount:  run.SampleCount,
		StopCount:    run.StopCount,
		RouteCount:   run.RouteCount,
		ErrorMessage: run.ErrorMessage,
		Timestamp:    s.now().UTC(),
	}
	if err := s.pub.PublishRunEvent(ev); err != nil {
		s.logger.Warn("failed to publish run event", zap.String("run", run.ID), zap.String("status", run.Status), zap.Error(err))
	}
}
