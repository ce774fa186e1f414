package metrics

import (
	"time"

	"github.com/czx-lab/garuda/metrics"
	"github.com/czx-lab/garuda/network"
	prom "github.com/prometheus/client_golang/prometheus"
)

type (
	// ClientMetrics records the traffic of gadget connections and the events
	// the protocol engine raises.
	ClientMetrics struct {
		// connection metrics
		activeConns  metrics.Gauge
		totalConns   metrics.Counter
		connDuration metrics.Histogram

		// message metrics
		receivedBytes metrics.Counter
		sentBytes     metrics.Counter
		frames        metrics.Counter
		lineSize      metrics.Summary
		dropped       metrics.Counter
		events        metrics.Counter

		// error metrics
		errors metrics.Counter
	}
	ClientMetricsConf struct {
		Namespace string `json:",default=garuda"`
		Subsystem string `json:",default=client"`
		// Registerer defaults to the prometheus default registerer.
		Registerer prom.Registerer `json:"-"`
	}
)

var _ network.ConnMetrics = (*ClientMetrics)(nil)

func NewClientMetrics(conf ClientMetricsConf) *ClientMetrics {
	opt := func(name, help string, labels ...string) *metrics.VectorOption {
		return &metrics.VectorOption{
			Namespace:  conf.Namespace,
			Subsystem:  conf.Subsystem,
			Name:       name,
			Help:       help,
			Labels:     labels,
			Registerer: conf.Registerer,
		}
	}

	return &ClientMetrics{
		activeConns:   metrics.NewGauge(opt("active_connections", "current number of open broker connections")),
		totalConns:    metrics.NewCounter(opt("connections_total", "total number of broker connections")),
		receivedBytes: metrics.NewCounter(opt("received_bytes_total", "total bytes received")),
		sentBytes:     metrics.NewCounter(opt("sent_bytes_total", "total bytes sent")),
		frames:        metrics.NewCounter(opt("frames_total", "lines exchanged by direction", "direction")),
		dropped:       metrics.NewCounter(opt("dropped_lines_total", "inbound lines dropped by reason", "reason")),
		events:        metrics.NewCounter(opt("events_total", "engine events raised by id", "event")),
		lineSize: metrics.NewSummary(&metrics.SummaryVecOpts{
			VectorOption: *opt("line_bytes", "size of protocol lines by direction", "direction"),
			Objectives:   map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		connDuration: metrics.NewHistogram(&metrics.HistogramVecOpts{
			VectorOption: *opt("connection_duration_seconds", "connection duration in seconds"),
			Buckets:      []float64{1, 10, 60, 300, 600, 1800, 3600},
		}),
		errors: metrics.NewCounter(opt("errors_total", "Total errors by type", "type")), // read/write/connect
	}
}

// AddReceivedBytes implements network.ConnMetrics.
func (s *ClientMetrics) AddReceivedBytes(bytes int) {
	s.receivedBytes.Add(float64(bytes))
}

// AddSentBytes implements network.ConnMetrics.
func (s *ClientMetrics) AddSentBytes(bytes int) {
	if bytes > 0 {
		s.sentBytes.Add(float64(bytes))
	}
}

// Close implements network.ConnMetrics. It unregisters every vector.
func (s *ClientMetrics) Close() error {
	var err error
	for _, m := range []metrics.Metrics{
		s.activeConns, s.totalConns, s.connDuration,
		s.receivedBytes, s.sentBytes, s.frames, s.lineSize,
		s.dropped, s.events, s.errors,
	} {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// DecConns implements network.ConnMetrics.
func (s *ClientMetrics) DecConns() {
	s.activeConns.Dec()
}

// IncConns implements network.ConnMetrics.
func (s *ClientMetrics) IncConns() {
	s.activeConns.Inc()
	s.totalConns.Inc()
}

// IncDroppedLines implements network.ConnMetrics.
func (s *ClientMetrics) IncDroppedLines(reason string) {
	s.dropped.Inc(reason)
}

// IncEvents counts one engine event.
func (s *ClientMetrics) IncEvents(id string) {
	s.events.Inc(id)
}

// IncFailedConns implements network.ConnMetrics.
func (s *ClientMetrics) IncFailedConns() {
	s.errors.Inc("connect")
}

// IncFrames implements network.ConnMetrics.
func (s *ClientMetrics) IncFrames(direction string) {
	s.frames.Inc(direction)
}

// ObserveLineSize implements network.ConnMetrics.
func (s *ClientMetrics) ObserveLineSize(direction string, bytes int) {
	s.lineSize.Observe(float64(bytes), direction)
}

// IncReadErrors implements network.ConnMetrics.
func (s *ClientMetrics) IncReadErrors() {
	s.errors.Inc("read")
}

// IncWriteErrors implements network.ConnMetrics.
func (s *ClientMetrics) IncWriteErrors() {
	s.errors.Inc("write")
}

// ObserveConnDuration implements network.ConnMetrics.
func (s *ClientMetrics) ObserveConnDuration(duration time.Duration) {
	s.connDuration.Observe(duration.Seconds())
}
