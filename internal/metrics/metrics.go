package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service metrics. A nil
// *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	Runs             *prometheus.CounterVec // status label: completed|failed
	SamplesSegmented prometheus.Counter
	StopsDetected    prometheus.Counter
	RoutesDetected   prometheus.Counter
	DecodeErrors     *prometheus.CounterVec // format label
	SegmentDuration  prometheus.Histogram

	HTTPRequests *prometheus.CounterVec // method, route, code labels
	HTTPDuration *prometheus.HistogramVec

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standstill_runs_total",
			Help: "Segmentation runs by final status.",
		}, []string{"status"}),
		SamplesSegmented: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standstill_samples_segmented_total",
			Help: "Total track samples segmented.",
		}),
		StopsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standstill_stops_detected_total",
			Help: "Total stops detected.",
		}),
		RoutesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standstill_routes_detected_total",
			Help: "Total routes detected.",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standstill_decode_errors_total",
			Help: "Uploaded tracks that could not be decoded, by format.",
		}, []string{"format"}),
		SegmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "standstill_segment_duration_seconds",
			Help:    "Duration of a segmentation pass.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standstill_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "standstill_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standstill_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standstill_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "standstill_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "standstill_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Runs, c.SamplesSegmented, c.StopsDetected, c.RoutesDetected,
		c.DecodeErrors, c.SegmentDuration,
		c.HTTPRequests, c.HTTPDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ObserveSegmentation records one segmentation pass.
func (c *Collector) ObserveSegmentation(samples, stops, routes int, d time.Duration) {
	if c == nil {
		return
	}
	c.SamplesSegmented.Add(float64(samples))
	c.StopsDetected.Add(float64(stops))
	c.RoutesDetected.Add(float64(routes))
	c.SegmentDuration.Observe(d.Seconds())
}

// RunFinished counts a run reaching status.
func (c *Collector) RunFinished(status string) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(status).Inc()
}

// DecodeFailed counts an undecodable upload.
func (c *Collector) DecodeFailed(format string) {
	if c == nil {
		return
	}
	c.DecodeErrors.WithLabelValues(format).Inc()
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) NATSPublishedInc() {
	if c != nil {
		c.NATSPublished.Inc()
	}
}

func (c *Collector) NATSPublishErrInc() {
	if c != nil {
		c.NATSPublishErrs.Inc()
	}
}

func (c *Collector) PublishObserve(d time.Duration) {
	if c != nil {
		c.PublishDuration.Observe(d.Seconds())
	}
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
