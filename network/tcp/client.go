package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/czx-lab/garuda/network"
	"go.uber.org/zap"
)

var (
	defaultAddr           = "localhost:9000"
	defaultConnectTimeout = 5 * time.Second
)

type TcpClientConf struct {
	TcpConnConf
	// Core broker address
	Addr string `json:",default=localhost:9000"`
	// Dial timeout
	ConnectTimeout time.Duration `json:",default=5s"`
}

// Dial opens one connection to the Core broker. It never retries; any
// failure matches network.ErrCannotConnect.
func Dial(ctx context.Context, conf *TcpClientConf, opts ...Option) (*TcpConn, error) {
	if conf == nil {
		conf = &TcpClientConf{}
	}
	defaultClientConf(conf)
	o := newOptions(opts)

	dialer := net.Dialer{Timeout: conf.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", conf.Addr)
	if err != nil {
		o.metrics.IncFailedConns()
		o.logger.Warn("tcp: connect failed", zap.String("addr", conf.Addr), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", network.ErrCannotConnect, conf.Addr, err)
	}

	o.logger.Debug("tcp: connected", zap.String("addr", conf.Addr))
	return NewTcpConn(conn, &conf.TcpConnConf, opts...), nil
}

func defaultClientConf(conf *TcpClientConf) {
	if len(conf.Addr) == 0 {
		conf.Addr = defaultAddr
	}
	if conf.ConnectTimeout <= 0 {
		conf.ConnectTimeout = defaultConnectTimeout
	}
	defaultConnConf(&conf.TcpConnConf)
}
