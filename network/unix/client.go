package unix

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/czx-lab/garuda/network"
	"github.com/czx-lab/garuda/network/tcp"
	"go.uber.org/zap"
)

var (
	defaultPath           = "/tmp/garuda.sock"
	defaultConnectTimeout = 5 * time.Second
)

// ClientConf reaches a broker that shares the host through a unix domain
// socket. Framing is the same as over tcp.
type ClientConf struct {
	tcp.TcpConnConf
	Path           string        `json:",default=/tmp/garuda.sock"`
	ConnectTimeout time.Duration `json:",default=5s"`
}

// Dial connects to the socket at conf.Path. Failures match
// network.ErrCannotConnect.
func Dial(ctx context.Context, conf *ClientConf, opts ...tcp.Option) (*tcp.TcpConn, error) {
	if conf == nil {
		conf = &ClientConf{}
	}
	defaultClientConf(conf)

	metrics, logger := tcp.Resolve(opts...)

	dialer := net.Dialer{Timeout: conf.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "unix", conf.Path)
	if err != nil {
		metrics.IncFailedConns()
		logger.Warn("unix: connect failed", zap.String("path", conf.Path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", network.ErrCannotConnect, conf.Path, err)
	}

	return tcp.NewTcpConn(conn, &conf.TcpConnConf, opts...), nil
}

func defaultClientConf(conf *ClientConf) {
	if len(conf.Path) == 0 {
		conf.Path = defaultPath
	}
	if conf.ConnectTimeout <= 0 {
		conf.ConnectTimeout = defaultConnectTimeout
	}
}
