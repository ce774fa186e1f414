package network

import "time"

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	DropReasonEmpty    = "empty"
	DropReasonTooLong  = "too_long"
	DropReasonUnknown  = "unknown_tag"
	DropReasonMismatch = "not_addressed"
)

// ConnMetrics defines the interface for client connection metrics tracking.
type ConnMetrics interface {
	// Connection metrics
	IncConns()
	DecConns()
	IncFailedConns()
	ObserveConnDuration(duration time.Duration)

	// Data transfer metrics
	AddSentBytes(bytes int)
	AddReceivedBytes(bytes int)
	IncFrames(direction string)
	ObserveLineSize(direction string, bytes int)
	IncDroppedLines(reason string)

	// Error metrics
	IncReadErrors()
	IncWriteErrors()

	Close() error
}

type NoopConnMetrics struct{}

// AddReceivedBytes implements ConnMetrics.
func (n *NoopConnMetrics) AddReceivedBytes(bytes int) {}

// AddSentBytes implements ConnMetrics.
func (n *NoopConnMetrics) AddSentBytes(bytes int) {}

// Close implements ConnMetrics.
func (n *NoopConnMetrics) Close() error { return nil }

// DecConns implements ConnMetrics.
func (n *NoopConnMetrics) DecConns() {}

// IncConns implements ConnMetrics.
func (n *NoopConnMetrics) IncConns() {}

// IncDroppedLines implements ConnMetrics.
func (n *NoopConnMetrics) IncDroppedLines(reason string) {}

// IncFailedConns implements ConnMetrics.
func (n *NoopConnMetrics) IncFailedConns() {}

// IncFrames implements ConnMetrics.
func (n *NoopConnMetrics) IncFrames(direction string) {}

// IncReadErrors implements ConnMetrics.
func (n *NoopConnMetrics) IncReadErrors() {}

// IncWriteErrors implements ConnMetrics.
func (n *NoopConnMetrics) IncWriteErrors() {}

// ObserveLineSize implements ConnMetrics.
func (n *NoopConnMetrics) ObserveLineSize(direction string, bytes int) {}

// ObserveConnDuration implements ConnMetrics.
func (n *NoopConnMetrics) ObserveConnDuration(duration time.Duration) {}

var _ ConnMetrics = (*NoopConnMetrics)(nil)
