package metrics

import (
	"errors"

	"github.com/czx-lab/garuda/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

var ErrUnregister = errors.New("metrics: failed to unregister metric")

type (
	// VectorOption defines options for creating metric vectors.
	VectorOption struct {
		Namespace string
		Subsystem string
		Name      string
		Help      string
		Labels    []string
		// Registerer defaults to the prometheus default registerer.
		Registerer prom.Registerer
	}
	// Metrics defines the interface for metrics collection and reporting.
	Metrics interface {
		// Close unregisters the metric.
		Close() error
	}
	// Counter defines the interface for a counter metric.
	Counter interface {
		Metrics
		Inc(labels ...string)
		Add(delta float64, labels ...string)
	}
	// Gauge defines the interface for a gauge metric.
	Gauge interface {
		Metrics
		Set(value float64, labels ...string)
		Inc(labels ...string)
		Dec(labels ...string)
		Add(delta float64, labels ...string)
		Sub(delta float64, labels ...string)
	}
	// Histogram defines the interface for a histogram metric.
	Histogram interface {
		Metrics
		Observe(value float64, labels ...string)
	}
	// Summary defines the interface for a summary metric.
	Summary interface {
		Metrics
		Observe(value float64, labels ...string)
	}
)

func update(fn func()) {
	if !prometheus.Enabled() {
		return
	}
	fn()
}

func registerer(conf *VectorOption) prom.Registerer {
	if conf.Registerer != nil {
		return conf.Registerer
	}
	return prom.DefaultRegisterer
}

// register registers c, or returns the collector already registered under the
// same descriptor so that two clients in one process share their vectors.
func register[T prom.Collector](reg prom.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func unregister(reg prom.Registerer, c prom.Collector) error {
	if reg.Unregister(c) {
		return nil
	}
	return ErrUnregister
}
