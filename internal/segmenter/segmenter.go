// Package segmenter splits a timestamped GPS track into stops and routes.
//
// The track is scanned once, left to right, with at most one open cluster
// of spatially coincident samples. Clusters that last long enough become
// stops; everything else is reported as routes. Gaps in time longer than
// Config.MaxTimeGap are hard boundaries that no segment spans.
package segmenter

import (
	"fmt"
	"time"

	"github.com/chrisndirangu54/standstill/internal/spatial"
)

// Segmenter runs segmentation passes with a fixed configuration.
// It holds no mutable state and may be shared between goroutines.
type Segmenter struct {
	cfg      Config
	distance func(a, b Point) float64
}

// New returns a Segmenter for cfg. Zero fields take their default value.
func New(cfg Config) (*Segmenter, error) {
	return NewResolved(cfg.WithDefaults())
}

// NewResolved returns a Segmenter for cfg exactly as given. Nothing is
// merged, so a zero MinStopDuration promotes every two-sample pause.
func NewResolved(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	distance, _ := cfg.Metric.distance()
	return &Segmenter{cfg: cfg, distance: distance}, nil
}

// Run segments samples with cfg. Zero fields take their default value.
func Run(samples []Sample, cfg Config) (*Result, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return s.Segment(samples)
}

// RunResolved segments samples with cfg exactly as given.
func RunResolved(samples []Sample, cfg Config) (*Result, error) {
	s, err := NewResolved(cfg)
	if err != nil {
		return nil, err
	}
	return s.Segment(samples)
}

// Config returns the effective configuration.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Segment splits samples into an ordered sequence of stops and routes.
func (s *Segmenter) Segment(samples []Sample) (*Result, error) {
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}

	p := &pass{
		samples:  samples,
		cfg:      s.cfg,
		distance: s.distance,
		runStart: -1,
	}

	for i := range samples {
		if i > 0 && samples[i].Time.Sub(samples[i-1].Time) > s.cfg.MaxTimeGap {
			if err := p.flush(i - 1); err != nil {
				return nil, err
			}
		}
		if err := p.step(i); err != nil {
			return nil, err
		}
	}
	if err := p.flush(len(samples) - 1); err != nil {
		return nil, err
	}

	return &Result{Segments: p.out}, nil
}

type state int

const (
	stateIdle state = iota
	stateCluster
	stateRoute
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCluster:
		return "cluster"
	case stateRoute:
		return "route"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// cluster is a contiguous run of samples within tolerance of their running centroid.
type cluster struct {
	start, end int
	centroid   Point
	count      int
}

// pass is the state of one segmentation scan.
type pass struct {
	samples  []Sample
	cfg      Config
	distance func(a, b Point) float64

	state state
	cl    cluster

	// runStart is the first sample of the pending route run, or -1.
	// While a cluster is open the run implicitly ends at cl.start.
	runStart int

	out []Segment
}

func (p *pass) step(i int) error {
	switch p.state {
	case stateIdle:
		p.openCluster(i, i)
	case stateCluster:
		return p.stepCluster(i)
	case stateRoute:
		p.stepRoute(i)
	default:
		return &InvariantError{State: p.state.String(), Reason: "unknown state"}
	}
	return nil
}

func (p *pass) openCluster(start, end int) {
	p.cl = cluster{start: start, end: start, centroid: p.samples[start].Point(), count: 1}
	for i := start + 1; i <= end; i++ {
		p.cl.add(i, p.samples[i].Point())
	}
	p.state = stateCluster
}

func (c *cluster) add(i int, pt Point) {
	c.count++
	c.end = i
	c.centroid.Lon += (pt.Lon - c.centroid.Lon) / float64(c.count)
	c.centroid.Lat += (pt.Lat - c.centroid.Lat) / float64(c.count)
}

func (p *pass) stepCluster(i int) error {
	pt := p.samples[i].Point()
	if p.distance(p.cl.centroid, pt) <= p.cfg.StopTolerance {
		p.cl.add(i, pt)
		return nil
	}

	if _, err := p.closeCluster(); err != nil {
		return err
	}
	// the route run now continues through sample i
	p.state = stateRoute
	return nil
}

func (p *pass) stepRoute(i int) {
	if p.distance(p.samples[i-1].Point(), p.samples[i].Point()) <= p.cfg.StopTolerance {
		p.openCluster(i-1, i)
	}
}

// closeCluster finalizes the open cluster as a stop, or folds it into the
// route run. It reports whether a stop was emitted.
func (p *pass) closeCluster() (bool, error) {
	if p.cl.count < 1 || p.cl.end < p.cl.start {
		return false, &InvariantError{State: p.state.String(), Reason: fmt.Sprintf("closing empty cluster [%d, %d]", p.cl.start, p.cl.end)}
	}

	if !p.isStop(p.cl) {
		if p.runStart < 0 {
			p.runStart = p.cl.start
		}
		return false, nil
	}

	if p.runStart >= 0 && p.cl.start > p.runStart {
		if err := p.emitRoute(p.runStart, p.cl.start); err != nil {
			return false, err
		}
	}
	p.emitStop(p.cl)
	// the next route run starts where the stop ended
	p.runStart = p.cl.end
	return true, nil
}

// isStop decides whether a finalized cluster is a pause or transient noise.
func (p *pass) isStop(c cluster) bool {
	if c.count < 2 {
		return false
	}
	span := p.samples[c.end].Time.Sub(p.samples[c.start].Time)
	if span <= 0 {
		return false
	}
	if c.count == 2 {
		return span >= p.cfg.MinStopDuration
	}
	return true
}

// flush finalizes whatever is open as of sample last and returns to idle.
func (p *pass) flush(last int) error {
	switch p.state {
	case stateIdle:
		return nil
	case stateCluster:
		stopped, err := p.closeCluster()
		if err != nil {
			return err
		}
		// a cluster open at the end of input always reaches last, so a stop
		// covers everything; otherwise the run, cluster included, is a route
		if !stopped {
			if err := p.emitRoute(p.runStart, last); err != nil {
				return err
			}
		}
	case stateRoute:
		if p.runStart < 0 {
			return &InvariantError{State: p.state.String(), Reason: "route state without a route run"}
		}
		if err := p.emitRoute(p.runStart, last); err != nil {
			return err
		}
	default:
		return &InvariantError{State: p.state.String(), Reason: "unknown state"}
	}

	p.state = stateIdle
	p.runStart = -1
	return nil
}

func (p *pass) emitStop(c cluster) {
	members := make([]spatial.Point, 0, c.count)
	for i := c.start; i <= c.end; i++ {
		members = append(members, spatial.Point{Lat: p.samples[i].Lat, Lon: p.samples[i].Lon})
	}
	center := spatial.Point{Lat: c.centroid.Lat, Lon: c.centroid.Lon}

	p.out = append(p.out, &Stop{
		Location:     c.centroid,
		StartTime:    p.samples[c.start].Time,
		EndTime:      p.samples[c.end].Time,
		First:        c.start,
		Last:         c.end,
		Samples:      c.count,
		RadiusMeters: spatial.MaxDistanceFromCenter(center, members),
	})
}

func (p *pass) emitRoute(first, last int) error {
	if first < 0 || last < first || last >= len(p.samples) {
		return &InvariantError{State: p.state.String(), Reason: fmt.Sprintf("bad route bounds [%d, %d]", first, last)}
	}

	n := last - first + 1
	route := &Route{
		Coordinates: make([]Point, 0, n),
		Times:       make([]time.Time, 0, n),
		First:       first,
		Last:        last,
	}
	for i := first; i <= last; i++ {
		route.Coordinates = append(route.Coordinates, p.samples[i].Point())
		route.Times = append(route.Times, p.samples[i].Time)
	}
	p.out = append(p.out, route)
	return nil
}
