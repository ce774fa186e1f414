package metrics

import (
	"testing"
	"time"

	"github.com/czx-lab/garuda/network"
	"github.com/czx-lab/garuda/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClientMetrics(t *testing.T) {
	prometheus.Enable()
	reg := prom.NewRegistry()

	m := NewClientMetrics(ClientMetricsConf{
		Namespace:  "garuda",
		Subsystem:  "client",
		Registerer: reg,
	})

	m.IncConns()
	m.AddSentBytes(12)
	m.AddSentBytes(0)
	m.AddReceivedBytes(30)
	m.IncFrames(network.DirectionOut)
	m.IncFrames(network.DirectionIn)
	m.IncFrames(network.DirectionIn)
	m.ObserveLineSize(network.DirectionIn, 64)
	m.IncDroppedLines(network.DropReasonEmpty)
	m.IncEvents("json_parse_error")
	m.IncReadErrors()
	m.IncFailedConns()
	m.ObserveConnDuration(2 * time.Second)
	m.DecConns()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]bool{}
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, name := range []string{
		"garuda_client_active_connections",
		"garuda_client_connections_total",
		"garuda_client_sent_bytes_total",
		"garuda_client_received_bytes_total",
		"garuda_client_frames_total",
		"garuda_client_line_bytes",
		"garuda_client_dropped_lines_total",
		"garuda_client_events_total",
		"garuda_client_errors_total",
		"garuda_client_connection_duration_seconds",
	} {
		if !got[name] {
			t.Errorf("missing metric %s", name)
		}
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n, _ := testutil.GatherAndCount(reg); n != 0 {
		t.Fatalf("expected all vectors unregistered, %d series left", n)
	}
}
