package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/czx-lab/garuda/garuda"
	"github.com/czx-lab/garuda/prometheus"
	"github.com/czx-lab/garuda/xlog"
	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/conf"
)

type (
	Config struct {
		Log        xlog.XLogConf      `json:",optional"`
		Prometheus prometheus.Config  `json:",optional"`
		Backend    garuda.BackendConf `json:",optional"`
		// How long list/send/notify wait for the broker
		Timeout time.Duration `json:",default=5s"`
	}

	// flags set on the command line win over the file.
	overrides struct {
		addr        string
		transport   string
		name        string
		id          string
		level       string
		metricsPort int
		timeout     time.Duration
	}
)

const defaultGadgetName = "gadgetctl"

func loadConfig(path string, o overrides) (*Config, error) {
	var c Config
	if len(path) > 0 {
		if err := conf.Load(path, &c, conf.UseEnv()); err != nil {
			return nil, fmt.Errorf("gadgetctl: load %s: %w", path, err)
		}
	} else if err := conf.LoadFromJsonBytes([]byte("{}"), &c); err != nil {
		return nil, err
	}

	if len(o.addr) > 0 {
		switch {
		case strings.HasPrefix(o.addr, "ws://"), strings.HasPrefix(o.addr, "wss://"):
			c.Backend.Transport = garuda.TransportWs
			c.Backend.Ws.Addr = o.addr
		case strings.HasPrefix(o.addr, "unix://"):
			c.Backend.Transport = garuda.TransportUnix
			c.Backend.Unix.Path = strings.TrimPrefix(o.addr, "unix://")
		default:
			c.Backend.Tcp.Addr = o.addr
		}
	}
	if len(o.transport) > 0 {
		c.Backend.Transport = o.transport
	}
	if len(o.name) > 0 {
		c.Backend.GadgetName = o.name
	}
	if len(o.id) > 0 {
		c.Backend.GadgetID = o.id
	}
	if len(o.level) > 0 {
		c.Log.Level = o.level
	}
	if o.metricsPort > 0 {
		c.Prometheus.Port = o.metricsPort
	}
	if o.timeout > 0 {
		c.Timeout = o.timeout
	}

	switch c.Backend.Transport {
	case "", garuda.TransportTcp, garuda.TransportWs, garuda.TransportUnix:
	default:
		return nil, fmt.Errorf("gadgetctl: unknown transport %q", c.Backend.Transport)
	}
	if _, ok := xlog.ParseLevel(c.Log.Level); !ok && len(c.Log.Level) > 0 {
		return nil, fmt.Errorf("gadgetctl: unknown log level %q", c.Log.Level)
	}

	if len(strings.TrimSpace(c.Backend.GadgetName)) == 0 {
		c.Backend.GadgetName = defaultGadgetName
	}
	if len(strings.TrimSpace(c.Backend.GadgetID)) == 0 {
		c.Backend.GadgetID = uuid.NewString()
	}

	return &c, nil
}
