package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/czx-lab/garuda/xlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	mu      sync.Mutex
	server  *http.Server
	enabled atomic.Bool
)

// A Config is a prometheus config.
type Config struct {
	Host string `json:",default=127.0.0.1"`
	Port int    `json:",optional"`
	Path string `json:",default=/metrics"`
}

// Enabled reports whether Prometheus metrics are enabled.
func Enabled() bool {
	return enabled.Load()
}

// Enable enables Prometheus metrics.
func Enable() {
	enabled.Store(true)
}

// Disable stops metric updates without tearing down the agent.
func Disable() {
	enabled.Store(false)
}

// Start enables metrics and serves them on c.Host:c.Port. It returns the
// bound address, which differs from the configured one when Port is 0.
// Calling Start while an agent is running returns its address.
func Start(c Config) (string, error) {
	defaultConfig(&c)

	mu.Lock()
	defer mu.Unlock()

	if server != nil {
		return server.Addr, nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(c.Host, fmt.Sprint(c.Port)))
	if err != nil {
		return "", fmt.Errorf("prometheus: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(c.Path, promhttp.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server = srv
	Enable()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			xlog.Write().Error("prometheus: metrics server stopped", zap.Error(err))
		}
	}()

	return srv.Addr, nil
}

// Stop shuts the agent down. Metric updates stay enabled.
func Stop(ctx context.Context) error {
	mu.Lock()
	srv := server
	server = nil
	mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func defaultConfig(conf *Config) {
	if conf.Path == "" {
		conf.Path = "/metrics"
	}
	if conf.Host == "" {
		conf.Host = "127.0.0.1"
	}
}
