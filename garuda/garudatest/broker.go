// Package garudatest provides an in-process Core broker for tests.
package garudatest

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/czx-lab/garuda/network/jsonx"
)

var ErrNoClient = errors.New("garudatest: no client connected")

type (
	// Handler answers one request. An empty reply tag sends nothing.
	Handler func(req jsonx.Envelope) (tag string, body any)

	// Broker accepts gadget connections on a loopback port, records every
	// line they send and lets a test push arbitrary bytes back.
	Broker struct {
		ln net.Listener

		mu       sync.Mutex
		conns    []net.Conn
		lines    []string
		handlers map[string]Handler
		wg       sync.WaitGroup
		closed   bool
	}
)

// NewBroker starts a broker that is closed when the test ends.
func NewBroker(t testing.TB) *Broker {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("garudatest: listen: %v", err)
	}

	b := &Broker{
		ln:       ln,
		handlers: make(map[string]Handler),
	}
	b.wg.Add(1)
	go b.accept()
	t.Cleanup(b.Close)

	return b
}

// Addr returns host:port of the broker.
func (b *Broker) Addr() string {
	return b.ln.Addr().String()
}

// Handle registers h for requests tagged tag.
func (b *Broker) Handle(tag string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[tag] = h
}

// AcceptActivation answers every activation with result code.
func (b *Broker) AcceptActivation(code int) {
	b.Handle("ActivateGadgetRequest", func(jsonx.Envelope) (string, any) {
		return "ActivateGadgetResponse", map[string]any{"result": code}
	})
}

func (b *Broker) accept() {
	defer b.wg.Done()

	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			conn.Close()
			return
		}
		b.conns = append(b.conns, conn)
		b.mu.Unlock()

		b.wg.Add(1)
		go b.serve(conn)
	}
}

func (b *Broker) serve(conn net.Conn) {
	defer b.wg.Done()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := scanner.Text()

		b.mu.Lock()
		b.lines = append(b.lines, line)
		b.mu.Unlock()

		env, err := jsonx.Decode(line)
		if err != nil {
			continue
		}
		b.mu.Lock()
		h := b.handlers[env.Header.ID]
		b.mu.Unlock()
		if h == nil {
			continue
		}
		if tag, body := h(env); len(tag) > 0 {
			_ = b.write(conn, tag, body)
		}
	}
}

func (b *Broker) write(conn net.Conn, tag string, body any) error {
	line, err := jsonx.Encode(jsonx.Header{ID: tag, Version: "0.2"}, body)
	if err != nil {
		return err
	}
	_, err = conn.Write([]byte(line))
	return err
}

// Lines returns every line received so far, without newlines.
func (b *Broker) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.lines...)
}

// WaitLines waits until at least n lines arrived.
func (b *Broker) WaitLines(n int, timeout time.Duration) ([]string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		lines := b.Lines()
		if len(lines) >= n {
			return lines, true
		}
		if time.Now().After(deadline) {
			return lines, false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// WaitClient waits for a gadget to connect.
func (b *Broker) WaitClient(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.client() != nil {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func (b *Broker) client() net.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

// Push writes raw bytes to the most recent client.
func (b *Broker) Push(raw string) error {
	conn := b.client()
	if conn == nil {
		return ErrNoClient
	}
	_, err := conn.Write([]byte(raw))
	return err
}

// PushEnvelope writes one encoded message to the most recent client.
func (b *Broker) PushEnvelope(tag string, body any) error {
	conn := b.client()
	if conn == nil {
		return ErrNoClient
	}
	return b.write(conn, tag, body)
}

// Disconnect closes every client connection and keeps listening.
func (b *Broker) Disconnect() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.ln.Close()
	b.Disconnect()
	b.wg.Wait()
}
