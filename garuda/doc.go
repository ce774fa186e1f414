// Package garuda is a client for the Garuda Core protocol.
//
// A gadget creates one Backend per broker session, calls Initialize to
// connect and activate, then issues requests and answers the broker's
// requests from its Listener. Every message crossing the wire is one JSON
// envelope per line; the broker ends a session by sending the line "stop".
//
// The Listener runs on the connection's receive goroutine. It may call back
// into the Backend, including CompatibleGadgets, but must not block for long:
// no further messages are dispatched while it runs.
package garuda
