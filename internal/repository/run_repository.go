package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chrisndirangu54/standstill/internal/database"
	"github.com/chrisndirangu54/standstill/internal/models"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/spatial"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunRepository handles database operations for segmentation runs and
// their stops and routes
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, name, source_format, status, error_message,
	sample_count, stop_count, route_count, track_start, track_end,
	max_time_gap_ms, stop_tolerance, min_stop_duration_ms, metric, time_layout,
	created_at, completed_at`

// Create inserts a new run
func (r *RunRepository) Create(run *models.Run) error {
	query := `INSERT INTO segmentation_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		run.ID, run.Name, run.SourceFormat, run.Status, run.ErrorMessage,
		run.SampleCount, run.StopCount, run.RouteCount, nullMillis(run.TrackStart), nullMillis(run.TrackEnd),
		run.MaxTimeGapMs, run.StopTolerance, run.MinStopDurationMs, run.Metric, run.TimeLayout,
		run.CreatedAt.UnixMilli(), nullMillis(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// MarkRunning stores the decoded track summary of run and moves it to running
func (r *RunRepository) MarkRunning(run *models.Run) error {
	result, err := r.db.Exec(`UPDATE segmentation_runs
		SET status = ?, name = ?, sample_count = ?, track_start = ?, track_end = ?, time_layout = ?
		WHERE id = ?`,
		models.RunStatusRunning, run.Name, run.SampleCount,
		nullMillis(run.TrackStart), nullMillis(run.TrackEnd), run.TimeLayout, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run %s running: %w", run.ID, err)
	}
	if err := requireAffected(result, run.ID); err != nil {
		return err
	}
	run.Status = models.RunStatusRunning
	return nil
}

// MarkFailed moves the run to failed with the given reason
func (r *RunRepository) MarkFailed(id, reason string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE segmentation_runs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`,
		models.RunStatusFailed, reason, at.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", id, err)
	}
	return requireAffected(result, id)
}

// Complete stores the segments of res and moves the run to completed, all
// in one transaction. Stop geohashes are sized to the run's stop tolerance.
func (r *RunRepository) Complete(run *models.Run, res *segmenter.Result, at time.Time) error {
	precision := StopGeohashPrecision(run.StopTolerance)

	return database.Transaction(r.db, func(tx *sql.Tx) error {
		stopStmt, err := tx.Prepare(`INSERT INTO stops (
			run_id, seq, first_index, last_index, lon, lat, start_time, end_time,
			duration_s, sample_count, radius_m, geohash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare stop insert: %w", err)
		}
		defer stopStmt.Close()

		routeStmt, err := tx.Prepare(`INSERT INTO routes (
			run_id, seq, first_index, last_index, start_time, end_time,
			point_count, distance_m, coordinates_json, times_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare route insert: %w", err)
		}
		defer routeStmt.Close()

		var stops, routes int
		for seq, seg := range res.Segments {
			switch s := seg.(type) {
			case *segmenter.Stop:
				rec := models.NewStopRecord(run.ID, seq, s, spatial.EncodeGeohash(s.Location.Lat, s.Location.Lon, precision))
				if _, err := stopStmt.Exec(
					rec.RunID, rec.Seq, rec.FirstIndex, rec.LastIndex, rec.Lon, rec.Lat,
					rec.StartTime.UnixMilli(), rec.EndTime.UnixMilli(),
					rec.DurationSeconds, rec.SampleCount, rec.RadiusMeters, rec.Geohash,
				); err != nil {
					return fmt.Errorf("failed to insert stop %d: %w", seq, err)
				}
				stops++
			case *segmenter.Route:
				rec := models.NewRouteRecord(run.ID, seq, s)
				coords, err := json.Marshal(rec.Coordinates)
				if err != nil {
					return fmt.Errorf("failed to encode route %d coordinates: %w", seq, err)
				}
				times, err := json.Marshal(rec.Times)
				if err != nil {
					return fmt.Errorf("failed to encode route %d times: %w", seq, err)
				}
				if _, err := routeStmt.Exec(
					rec.RunID, rec.Seq, rec.FirstIndex, rec.LastIndex,
					rec.StartTime.UnixMilli(), rec.EndTime.UnixMilli(),
					rec.PointCount, rec.DistanceMeters, string(coords), string(times),
				); err != nil {
					return fmt.Errorf("failed to insert route %d: %w", seq, err)
				}
				routes++
			default:
				return fmt.Errorf("unexpected segment type %T", seg)
			}
		}

		result, err := tx.Exec(`UPDATE segmentation_runs
			SET status = ?, stop_count = ?, route_count = ?, error_message = '', completed_at = ?
			WHERE id = ?`,
			models.RunStatusCompleted, stops, routes, at.UnixMilli(), run.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to complete run %s: %w", run.ID, err)
		}
		return requireAffected(result, run.ID)
	})
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(id string) (*models.Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM segmentation_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List retrieves runs with filtering and pagination, newest first
func (r *RunRepository) List(filter models.RunFilter) ([]models.Run, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM segmentation_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	query := "SELECT " + runColumns + " FROM segmentation_runs" + where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, total, rows.Err()
}

// Delete removes a run together with its stops and routes
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM segmentation_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return requireAffected(result, id)
}

// GetStops retrieves the stops of a run in track order
func (r *RunRepository) GetStops(runID string, filter models.StopFilter) ([]models.StopRecord, int64, error) {
	conditions := []string{"run_id = ?"}
	args := []interface{}{runID}

	if filter.MinDuration > 0 {
		conditions = append(conditions, "duration_s >= ?")
		args = append(args, filter.MinDuration)
	}
	if filter.Geohash != "" {
		conditions = append(conditions, "geohash LIKE ?")
		args = append(args, filter.Geohash+"%")
	}
	if filter.Radius > 0 {
		// bounding box around the point; exact distances are checked by callers that need them
		dLat := spatial.MetersToDegrees(filter.Radius)
		dLon := dLat / math.Max(math.Cos(filter.Lat*math.Pi/180), 1e-6)
		conditions = append(conditions, "lat BETWEEN ? AND ?", "lon BETWEEN ? AND ?")
		args = append(args, filter.Lat-dLat, filter.Lat+dLat, filter.Lon-dLon, filter.Lon+dLon)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM stops"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count stops: %w", err)
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	query := `SELECT run_id, seq, first_index, last_index, lon, lat, start_time, end_time,
		duration_s, sample_count, radius_m, geohash
		FROM stops` + where + " ORDER BY seq LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var stops []models.StopRecord
	for rows.Next() {
		var s models.StopRecord
		var start, end int64
		if err := rows.Scan(
			&s.RunID, &s.Seq, &s.FirstIndex, &s.LastIndex, &s.Lon, &s.Lat, &start, &end,
			&s.DurationSeconds, &s.SampleCount, &s.RadiusMeters, &s.Geohash,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan stop: %w", err)
		}
		s.StartTime, s.EndTime = fromMillis(start), fromMillis(end)
		stops = append(stops, s)
	}

	return stops, total, rows.Err()
}

// GetRoutes retrieves the routes of a run in track order
func (r *RunRepository) GetRoutes(runID string, filter models.RouteFilter) ([]models.RouteRecord, int64, error) {
	conditions := []string{"run_id = ?"}
	args := []interface{}{runID}

	if filter.MinDistance > 0 {
		conditions = append(conditions, "distance_m >= ?")
		args = append(args, filter.MinDistance)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM routes"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	page, pageSize := models.Normalize(filter.Page, filter.PageSize)
	query := `SELECT run_id, seq, first_index, last_index, start_time, end_time,
		point_count, distance_m, coordinates_json, times_json
		FROM routes` + where + " ORDER BY seq LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.RouteRecord
	for rows.Next() {
		var rt models.RouteRecord
		var start, end int64
		var coords, times string
		if err := rows.Scan(
			&rt.RunID, &rt.Seq, &rt.FirstIndex, &rt.LastIndex, &start, &end,
			&rt.PointCount, &rt.DistanceMeters, &coords, &times,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan route: %w", err)
		}
		rt.StartTime, rt.EndTime = fromMillis(start), fromMillis(end)
		if err := json.Unmarshal([]byte(coords), &rt.Coordinates); err != nil {
			return nil, 0, fmt.Errorf("failed to decode route %d coordinates: %w", rt.Seq, err)
		}
		if err := json.Unmarshal([]byte(times), &rt.Times); err != nil {
			return nil, 0, fmt.Errorf("failed to decode route %d times: %w", rt.Seq, err)
		}
		routes = append(routes, rt)
	}

	return routes, total, rows.Err()
}

// GetResult rebuilds the full segmentation of a run in track order.
func (r *RunRepository) GetResult(runID string) (*segmenter.Result, error) {
	type seqSegment struct {
		seq int
		seg segmenter.Segment
	}
	var segs []seqSegment

	for page := 1; ; page++ {
		stops, total, err := r.GetStops(runID, models.StopFilter{Page: page, PageSize: 1000})
		if err != nil {
			return nil, err
		}
		for _, s := range stops {
			segs = append(segs, seqSegment{s.Seq, s.Stop()})
		}
		if int64(page*1000) >= total {
			break
		}
	}
	for page := 1; ; page++ {
		routes, total, err := r.GetRoutes(runID, models.RouteFilter{Page: page, PageSize: 1000})
		if err != nil {
			return nil, err
		}
		for _, rt := range routes {
			route, err := rt.Route()
			if err != nil {
				return nil, err
			}
			segs = append(segs, seqSegment{rt.Seq, route})
		}
		if int64(page*1000) >= total {
			break
		}
	}

	res := &segmenter.Result{Segments: make([]segmenter.Segment, len(segs))}
	for _, s := range segs {
		if s.seq < 0 || s.seq >= len(segs) {
			return nil, fmt.Errorf("run %s: segment seq %d out of range", runID, s.seq)
		}
		res.Segments[s.seq] = s.seg
	}
	return res, nil
}

// StopGeohashPrecision returns the geohash precision whose cells are about
// as wide as a stop for the given tolerance in degrees.
func StopGeohashPrecision(tolerance float64) int {
	return spatial.GeohashPrecisionForDistance(spatial.DegreesToMeters(tolerance))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var trackStart, trackEnd, completedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(
		&run.ID, &run.Name, &run.SourceFormat, &run.Status, &run.ErrorMessage,
		&run.SampleCount, &run.StopCount, &run.RouteCount, &trackStart, &trackEnd,
		&run.MaxTimeGapMs, &run.StopTolerance, &run.MinStopDurationMs, &run.Metric, &run.TimeLayout,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	run.TrackStart = timeFromNull(trackStart)
	run.TrackEnd = timeFromNull(trackEnd)
	run.CompletedAt = timeFromNull(completedAt)
	run.CreatedAt = fromMillis(createdAt)
	return &run, nil
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func nullMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
