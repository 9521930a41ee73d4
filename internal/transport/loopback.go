package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"emberfall/server/internal/telemetry"
)

// Loopback is the local-testing binding: unixgram socket pairs standing in
// for the named-pipe pairs of the original harness. It carries the coarse
// loopback frames, not the full UDP message catalog.
type Loopback struct {
	conn    *net.UnixConn
	remote  *net.UnixAddr
	path    string
	packets chan Packet
	closed  atomic.Bool
	logger  telemetry.Logger
}

// ListenLoopback binds the authority side of the harness at path.
func ListenLoopback(path string, logger telemetry.Logger) (*Loopback, error) {
	os.Remove(path)
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("bind loopback %s: %w", path, err)
	}
	return newLoopback(conn, nil, path, logger), nil
}

// DialLoopback binds the participant side at localPath and connects it to
// the authority at remotePath.
func DialLoopback(remotePath, localPath string, logger telemetry.Logger) (*Loopback, error) {
	os.Remove(localPath)
	laddr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: remotePath, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial loopback %s: %w", remotePath, err)
	}
	return newLoopback(conn, raddr, localPath, logger), nil
}

func newLoopback(conn *net.UnixConn, remote *net.UnixAddr, path string, logger telemetry.Logger) *Loopback {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	l := &Loopback{
		conn:    conn,
		remote:  remote,
		path:    path,
		packets: make(chan Packet, receiveBacklog),
		logger:  logger,
	}
	go l.readLoop()
	return l
}

func (l *Loopback) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFromUnix(buf)
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Printf("loopback read error: %v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		var from net.Addr
		if addr != nil {
			from = addr
		}
		select {
		case l.packets <- Packet{Data: data, Addr: from}:
		default:
			// Coarse harness traffic; losing a frame only delays the
			// next display update.
		}
	}
}

// Receive implements Binding.
func (l *Loopback) Receive() (Packet, bool) {
	select {
	case pkt := <-l.packets:
		return pkt, true
	default:
		return Packet{}, false
	}
}

// Send implements Binding.
func (l *Loopback) Send(data []byte, addr net.Addr) error {
	if l.remote != nil {
		_, err := l.conn.Write(data)
		return err
	}
	unixAddr, ok := addr.(*net.UnixAddr)
	if !ok {
		return fmt.Errorf("loopback send: bad address %v", addr)
	}
	_, err := l.conn.WriteToUnix(data, unixAddr)
	return err
}

// LocalAddr implements Binding.
func (l *Loopback) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close implements Binding and removes the socket file.
func (l *Loopback) Close() error {
	l.closed.Store(true)
	err := l.conn.Close()
	os.Remove(l.path)
	return err
}
