package network

import "net"

// Conn is a line-oriented connection to the Core broker.
type Conn interface {
	// Send writes one already-framed message to the peer.
	Send(text string) error
	// Bind registers the raw message handler. The last registration wins.
	Bind(fn func(string))
	// BindClose registers the handler fired once when the peer goes away.
	BindClose(fn func(error))
	// Start launches the receive loop.
	Start()
	// Running reports whether the receive loop is still active.
	Running() bool
	// LocalAddr returns the local address of the connection.
	LocalAddr() net.Addr
	// RemoteAddr returns the remote address of the connection.
	RemoteAddr() net.Addr
	// Close stops the receive loop and closes the socket.
	Close()
}
