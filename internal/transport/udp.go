package transport

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"emberfall/server/internal/telemetry"
)

const (
	maxDatagramSize = 64 * 1024
	receiveBacklog  = 1024
)

// UDP is a datagram binding over a UDP socket. The server listens unbound;
// clients dial a connected socket. A single reader goroutine feeds the
// receive channel; when the backlog fills, new datagrams are dropped in
// favor of keeping the reader moving.
type UDP struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	packets chan Packet
	closed  atomic.Bool
	dropped atomic.Uint64
	logger  telemetry.Logger
}

// ListenUDP binds a server socket. A bind failure here is the one
// fatal-to-process transport error: callers report it and exit.
func ListenUDP(addr string, logger telemetry.Logger) (*UDP, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return newUDP(conn, nil, logger), nil
}

// DialUDP opens a connected client socket toward the server.
func DialUDP(addr string, logger telemetry.Logger) (*UDP, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newUDP(conn, udpAddr, logger), nil
}

func newUDP(conn *net.UDPConn, remote *net.UDPAddr, logger telemetry.Logger) *UDP {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	u := &UDP{
		conn:    conn,
		remote:  remote,
		packets: make(chan Packet, receiveBacklog),
		logger:  logger,
	}
	go u.readLoop()
	return u
}

func (u *UDP) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if u.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Mid-session socket errors are recoverable, not fatal.
			u.logger.Printf("udp read error: %v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case u.packets <- Packet{Data: data, Addr: addr}:
		default:
			if u.dropped.Add(1)%1000 == 1 {
				u.logger.Printf("udp receive backlog full, dropping (total %d)", u.dropped.Load())
			}
		}
	}
}

// Receive implements Binding.
func (u *UDP) Receive() (Packet, bool) {
	select {
	case pkt := <-u.packets:
		return pkt, true
	default:
		return Packet{}, false
	}
}

// Send implements Binding.
func (u *UDP) Send(data []byte, addr net.Addr) error {
	if u.remote != nil {
		_, err := u.conn.Write(data)
		return err
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("udp send: bad address %v", addr)
	}
	_, err := u.conn.WriteToUDP(data, udpAddr)
	return err
}

// LocalAddr implements Binding.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Dropped reports datagrams discarded because the backlog was full.
func (u *UDP) Dropped() uint64 {
	return u.dropped.Load()
}

// Close implements Binding.
func (u *UDP) Close() error {
	u.closed.Store(true)
	return u.conn.Close()
}
