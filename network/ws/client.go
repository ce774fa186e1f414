package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/czx-lab/garuda/network"
	"github.com/czx-lab/garuda/network/tcp"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	defaultAddr             = "ws://localhost:9000/"
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxMsgSize       = int64(16 << 20)
)

type ClientConf struct {
	tcp.TcpConnConf
	// ws:// or wss:// endpoint of the Core broker
	Addr             string        `json:",default=ws://localhost:9000/"`
	HandshakeTimeout time.Duration `json:",default=10s"`
	// Largest accepted websocket message
	MaxMsgSize int64 `json:",default=16777216"`
}

// Dial opens a websocket to the broker and returns it as a line connection.
// Failures match network.ErrCannotConnect.
func Dial(ctx context.Context, conf *ClientConf, opts ...tcp.Option) (*tcp.TcpConn, error) {
	if conf == nil {
		conf = &ClientConf{}
	}
	defaultClientConf(conf)

	metrics, logger := tcp.Resolve(opts...)

	dialer := websocket.Dialer{
		HandshakeTimeout: conf.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, conf.Addr, nil)
	if err != nil {
		metrics.IncFailedConns()
		logger.Warn("ws: connect failed", zap.String("addr", conf.Addr), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", network.ErrCannotConnect, conf.Addr, err)
	}
	conn.SetReadLimit(conf.MaxMsgSize)

	return tcp.NewTcpConn(newStreamConn(conn), &conf.TcpConnConf, opts...), nil
}

func defaultClientConf(conf *ClientConf) {
	if len(conf.Addr) == 0 {
		conf.Addr = defaultAddr
	}
	if conf.HandshakeTimeout <= 0 {
		conf.HandshakeTimeout = defaultHandshakeTimeout
	}
	if conf.MaxMsgSize <= 0 {
		conf.MaxMsgSize = defaultMaxMsgSize
	}
}
