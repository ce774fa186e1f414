package ws

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var closeGrace = time.Second

// streamConn presents a websocket as a byte stream so that tcp.TcpConn can
// run its line framing over it. Each Write is one text message.
//
// gorilla connections cannot survive a read timeout, so a pump goroutine owns
// ReadMessage and Read applies deadlines on the channel instead.
type streamConn struct {
	ws      *websocket.Conn
	frames  chan []byte
	pending []byte
	done    chan struct{}

	mu           sync.Mutex
	readDeadline time.Time
	err          error
	closeOnce    sync.Once
}

var _ net.Conn = (*streamConn)(nil)

func newStreamConn(ws *websocket.Conn) *streamConn {
	c := &streamConn{
		ws:     ws,
		frames: make(chan []byte),
		done:   make(chan struct{}),
	}
	go c.pump()

	return c
}

func (c *streamConn) pump() {
	defer close(c.frames)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = readError(err)
			c.mu.Unlock()
			return
		}

		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

// Read implements net.Conn.
func (c *streamConn) Read(b []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	var timeout <-chan time.Time
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data, ok := <-c.frames:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return 0, c.err
		}
		n := copy(b, data)
		c.pending = data[n:]
		return n, nil
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	case <-c.done:
		return 0, net.ErrClosed
	}
}

// Write implements net.Conn.
func (c *streamConn) Write(b []byte) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return 0, net.ErrClosed
		}
		return 0, err
	}
	return len(b), nil
}

// Close implements net.Conn.
func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		err = c.ws.Close()
	})
	return err
}

// LocalAddr implements net.Conn.
func (c *streamConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr implements net.Conn.
func (c *streamConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// SetDeadline implements net.Conn.
func (c *streamConn) SetDeadline(t time.Time) error {
	_ = c.SetReadDeadline(t)
	return c.SetWriteDeadline(t)
}

// SetReadDeadline implements net.Conn.
func (c *streamConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.readDeadline = t
	return nil
}

// SetWriteDeadline implements net.Conn.
func (c *streamConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

func readError(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
	) {
		return io.EOF
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return errors.Join(io.EOF, err)
	}
	return err
}
