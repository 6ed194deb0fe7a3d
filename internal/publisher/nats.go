package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// RunEvent announces a run status change.
type RunEvent struct {
	RunID        string    `json:"runId"`
	Name         string    `json:"name,omitempty"`
	Status       string    `json:"status"`
	SampleCount  int       `json:"sampleCount"`
	StopCount    int       `json:"stopCount"`
	RouteCount   int       `json:"routeCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers run events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishRunEvent(ev RunEvent) error
	Close()
}

// PublisherMetrics is the subset of metrics the NATS publisher reports.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher publishes run events as JSON on <prefix>.runs.<id>.<status>.
type NATSPublisher struct {
	nc      conn
	prefix  string
	metrics PublisherMetrics
	logger  *zap.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, prefix string, m PublisherMetrics, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(url,
		nats.Name("standstill"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newNATSPublisher(nc, prefix, m, logger), nil
}

func newNATSPublisher(nc conn, prefix string, m PublisherMetrics, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, metrics: m, logger: logger}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Subject returns the subject an event for runID in status is published on.
func (p *NATSPublisher) Subject(runID, status string) string {
	return fmt.Sprintf("%s.runs.%s.%s", strings.Trim(p.prefix, ". "), subjectToken(runID), subjectToken(status))
}

func (p *NATSPublisher) PublishRunEvent(ev RunEvent) error {
	subject := p.Subject(ev.RunID, ev.Status)
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published run event", zap.String("subject", subject))
	return nil
}

// Nop discards every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishRunEvent(RunEvent) error { return nil }
func (Nop) Close()                         {}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
