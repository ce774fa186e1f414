package garuda

import (
	"context"

	"github.com/czx-lab/garuda/network"
	"go.uber.org/zap"
)

type (
	// Dialer opens the broker connection for Initialize.
	Dialer func(ctx context.Context) (network.Conn, error)

	// Metrics records connection traffic and engine events.
	Metrics interface {
		network.ConnMetrics
		IncEvents(id string)
	}

	NoopMetrics struct {
		network.NoopConnMetrics
	}

	Option func(*Backend)
)

var _ Metrics = (*NoopMetrics)(nil)

// IncEvents implements Metrics.
func (n *NoopMetrics) IncEvents(id string) {}

// WithDialer replaces the transport selected by BackendConf.Transport.
func WithDialer(d Dialer) Option {
	return func(b *Backend) {
		if d != nil {
			b.dialer = d
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(b *Backend) {
		if m != nil {
			b.metrics = m
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}
