// Package transport owns the datagram bindings the tick loops drive: a UDP
// binding for real sessions and a unixgram loopback binding for the
// local-testing harness. A binding never blocks the tick: a background reader
// hands datagrams to the loop through a buffered channel and the loop drains
// whatever is available each pass.
package transport

import "net"

// DefaultPort is the UDP port a server binds when none is configured.
const DefaultPort = 7777

// DefaultAddr is the loopback listen address used for local testing.
const DefaultAddr = "127.0.0.1:7777"

// Packet is one received datagram with its origin.
type Packet struct {
	Data []byte
	Addr net.Addr
}

// Binding is a pluggable datagram transport.
type Binding interface {
	// Receive returns the next pending datagram without blocking; ok is
	// false when nothing is waiting.
	Receive() (pkt Packet, ok bool)
	// Send transmits one datagram. addr is ignored by connected bindings.
	Send(data []byte, addr net.Addr) error
	LocalAddr() net.Addr
	Close() error
}
