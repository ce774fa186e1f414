package metrics

import (
	"testing"

	"github.com/czx-lab/garuda/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVectors(t *testing.T) {
	prometheus.Enable()
	reg := prom.NewRegistry()

	counter := NewCounter(&VectorOption{
		Namespace:  "garuda",
		Subsystem:  "test",
		Name:       "frames_total",
		Help:       "frames",
		Labels:     []string{"direction"},
		Registerer: reg,
	})
	counter.Inc("in")
	counter.Add(2, "in")

	gauge := NewGauge(&VectorOption{
		Namespace:  "garuda",
		Subsystem:  "test",
		Name:       "active_connections",
		Help:       "connections",
		Registerer: reg,
	})
	gauge.Inc()
	gauge.Inc()
	gauge.Dec()

	histogram := NewHistogram(&HistogramVecOpts{
		VectorOption: VectorOption{
			Namespace:  "garuda",
			Subsystem:  "test",
			Name:       "connection_duration_seconds",
			Help:       "duration",
			Registerer: reg,
		},
		Buckets: []float64{1, 10},
	})
	histogram.Observe(3)

	summary := NewSummary(&SummaryVecOpts{
		VectorOption: VectorOption{
			Namespace:  "garuda",
			Subsystem:  "test",
			Name:       "line_bytes",
			Help:       "line size",
			Labels:     []string{"direction"},
			Registerer: reg,
		},
		Objectives: map[float64]float64{0.5: 0.05},
	})
	summary.Observe(40, "in")
	summary.Observe(60, "out")

	if got := testutil.ToFloat64(counter.(*promCounter).counter.WithLabelValues("in")); got != 3 {
		t.Fatalf("counter got=%v", got)
	}
	if got := testutil.ToFloat64(gauge.(*promGauge).gauge.WithLabelValues()); got != 1 {
		t.Fatalf("gauge got=%v", got)
	}
	if n := testutil.CollectAndCount(histogram.(*promHistogram).histogram); n != 1 {
		t.Fatalf("histogram series got=%d", n)
	}
	if n := testutil.CollectAndCount(summary.(*promSummary).summary); n != 2 {
		t.Fatalf("summary series got=%d", n)
	}

	for _, m := range []Metrics{counter, gauge, histogram, summary} {
		if err := m.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if err := counter.Close(); err == nil {
		t.Fatalf("expected second close to fail")
	}
}

func TestRegisterReusesExistingCollector(t *testing.T) {
	prometheus.Enable()
	reg := prom.NewRegistry()
	opt := &VectorOption{
		Namespace:  "garuda",
		Subsystem:  "test",
		Name:       "shared_total",
		Help:       "shared",
		Registerer: reg,
	}

	first := NewCounter(opt)
	second := NewCounter(opt)
	first.Inc()
	second.Inc()

	if got := testutil.ToFloat64(first.(*promCounter).counter.WithLabelValues()); got != 2 {
		t.Fatalf("expected shared vector, got=%v", got)
	}
}
