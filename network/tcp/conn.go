package tcp

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/czx-lab/garuda/network"
	"github.com/czx-lab/garuda/xlog"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
)

var (
	defaultPollInterval   = 10 * time.Millisecond
	defaultWriteTimeout   = 5 * time.Second
	defaultReadBufferSize = 2048
	defaultToken          = "stop"
)

type (
	TcpConnConf struct {
		// Read deadline of one receive cycle
		PollInterval time.Duration `json:",default=10ms"`
		// Deadline of one Send
		WriteTimeout time.Duration `json:",default=5s"`
		// Bytes requested per read
		ReadBufferSize int `json:",default=2048"`
		// Maximum length of an unterminated line
		MaxLineSize int `json:",default=16777216"`
		// Line that ends the session when sent by the peer
		Token string `json:",default=stop"`
	}

	// Option configures a TcpConn.
	Option func(*options)

	options struct {
		metrics network.ConnMetrics
		logger  *zap.Logger
	}

	// TcpConn owns one stream socket to the Core broker. It runs a single
	// receive goroutine and writes synchronously from the caller's goroutine.
	TcpConn struct {
		// guards conn and the handlers
		mu sync.Mutex
		// serialises writers
		wmu  sync.Mutex
		conf *TcpConnConf
		// nil once closed
		conn    net.Conn
		parser  *LineParser
		running atomic.Bool
		started atomic.Bool
		handler func(string)
		onClose func(error)
		// fires onClose at most once; consumed by an intentional Close
		closeOnce sync.Once
		metrics   network.ConnMetrics
		logger    *zap.Logger
		opened    time.Time
		done      chan struct{}
	}
)

var _ network.Conn = (*TcpConn)(nil)

// WithMetrics records connection metrics on m.
func WithMetrics(m network.ConnMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger replaces the process logger for this connection.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		metrics: &network.NoopConnMetrics{},
		logger:  xlog.Write(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolve returns the metrics and logger selected by opts, with the same
// defaults NewTcpConn applies.
func Resolve(opts ...Option) (network.ConnMetrics, *zap.Logger) {
	o := newOptions(opts)
	return o.metrics, o.logger
}

// NewTcpConn wraps an established stream. The receive loop is not started.
func NewTcpConn(conn net.Conn, conf *TcpConnConf, opts ...Option) *TcpConn {
	if conf == nil {
		conf = &TcpConnConf{}
	}
	defaultConnConf(conf)
	o := newOptions(opts)

	tcpconn := &TcpConn{
		conf:    conf,
		conn:    conn,
		parser:  NewLineParser(conf.MaxLineSize),
		metrics: o.metrics,
		logger:  o.logger,
		opened:  time.Now(),
		done:    make(chan struct{}),
	}
	tcpconn.metrics.IncConns()

	return tcpconn
}

// Bind implements network.Conn.
func (c *TcpConn) Bind(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler = fn
}

// BindClose implements network.Conn.
func (c *TcpConn) BindClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onClose = fn
}

// Start implements network.Conn. Only the first call has an effect.
func (c *TcpConn) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	if c.socket() == nil {
		close(c.done)
		return
	}

	c.running.Store(true)
	threading.GoSafe(c.loop)
}

// Running implements network.Conn.
func (c *TcpConn) Running() bool {
	return c.running.Load()
}

// Done is closed when the receive loop has exited.
func (c *TcpConn) Done() <-chan struct{} {
	return c.done
}

func (c *TcpConn) loop() {
	defer close(c.done)

	buf := make([]byte, c.conf.ReadBufferSize)
	for c.running.Load() {
		conn := c.socket()
		if conn == nil {
			c.running.Store(false)
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.conf.PollInterval))
		n, err := conn.Read(buf)
		if n > 0 {
			c.metrics.AddReceivedBytes(n)
			if ferr := c.parser.Feed(buf[:n]); ferr != nil {
				c.metrics.IncReadErrors()
				c.metrics.IncDroppedLines(network.DropReasonTooLong)
				c.logger.Warn("tcp: dropping oversized line", zap.Int("max", c.conf.MaxLineSize))
			}
			if !c.drain() {
				return
			}
		}
		if err == nil || isTimeout(err) {
			continue
		}

		// Close clears running before it closes the socket.
		if !c.running.CompareAndSwap(true, false) {
			return
		}
		c.metrics.IncReadErrors()
		c.logger.Info("tcp: remote host closed", zap.Error(err))
		c.closeSocket()
		c.fireClose(err)
		return
	}
}

// drain delivers every complete line in order. It reports false once the
// loop must halt.
func (c *TcpConn) drain() bool {
	for {
		line, ok := c.parser.Next()
		if !ok {
			return true
		}

		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case c.conf.Token:
			c.metrics.IncFrames(network.DirectionIn)
			c.running.Store(false)
			c.closeOnce.Do(func() {})
			c.dispatch(c.conf.Token)
			c.closeSocket()
			return false
		case "":
			c.metrics.IncDroppedLines(network.DropReasonEmpty)
			continue
		}

		c.metrics.IncFrames(network.DirectionIn)
		c.metrics.ObserveLineSize(network.DirectionIn, len(line))
		c.dispatch(line)
		if !c.running.Load() {
			return false
		}
	}
}

func (c *TcpConn) dispatch(line string) {
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()

	if fn == nil {
		c.logger.Debug("tcp: no handler bound, line dropped")
		return
	}
	fn(line)
}

func (c *TcpConn) fireClose(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		fn := c.onClose
		c.mu.Unlock()

		if fn != nil {
			fn(cause)
		}
	})
}

// Send implements network.Conn.
func (c *TcpConn) Send(text string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	conn := c.socket()
	if conn == nil {
		return network.ErrConnectTerminated
	}

	if c.conf.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.conf.WriteTimeout))
	}
	n, err := io.WriteString(conn, text)
	c.metrics.AddSentBytes(n)
	if err != nil {
		c.metrics.IncWriteErrors()
		return sendError(err)
	}

	c.metrics.IncFrames(network.DirectionOut)
	c.metrics.ObserveLineSize(network.DirectionOut, n)
	return nil
}

// Close implements network.Conn. It is idempotent and never fires the close
// handler.
func (c *TcpConn) Close() {
	c.running.Store(false)
	c.closeOnce.Do(func() {})
	c.closeSocket()
}

func (c *TcpConn) closeSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}

	_ = c.conn.Close()
	c.conn = nil
	c.metrics.DecConns()
	c.metrics.ObserveConnDuration(time.Since(c.opened))
}

func (c *TcpConn) socket() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn
}

// LocalAddr implements network.Conn.
func (c *TcpConn) LocalAddr() net.Addr {
	if conn := c.socket(); conn != nil {
		return conn.LocalAddr()
	}
	return nil
}

// RemoteAddr implements network.Conn.
func (c *TcpConn) RemoteAddr() net.Addr {
	if conn := c.socket(); conn != nil {
		return conn.RemoteAddr()
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// terminated reports whether err means the peer or the socket is gone.
func terminated(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EBADF)
}

func sendError(err error) error {
	if terminated(err) {
		return errors.Join(network.ErrConnectTerminated, err)
	}

	var code int
	var errno syscall.Errno
	if errors.As(err, &errno) {
		code = int(errno)
	}
	return &network.CannotSendError{Code: code, Message: err.Error()}
}

func defaultConnConf(conf *TcpConnConf) {
	if conf.PollInterval <= 0 {
		conf.PollInterval = defaultPollInterval
	}
	if conf.WriteTimeout <= 0 {
		conf.WriteTimeout = defaultWriteTimeout
	}
	if conf.ReadBufferSize <= 0 {
		conf.ReadBufferSize = defaultReadBufferSize
	}
	if conf.MaxLineSize <= 0 {
		conf.MaxLineSize = defaultMaxLineSize
	}
	if conf.Token = strings.TrimSpace(conf.Token); len(conf.Token) == 0 {
		conf.Token = defaultToken
	}
}
