// Package udpsocket wraps a bound UDP socket with the minimal
// connectionless, address-preserving surface the engine consumes.
package udpsocket

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

// Socket is a bound UDP datagram socket.
type Socket struct {
	conn *net.UDPConn
	port int
	log  *slog.Logger
}

// Bind opens a UDP socket on listenAddr (host:port; port 0 picks an
// ephemeral port).
func Bind(listenAddr string, log *slog.Logger) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("udpsocket: resolve %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpsocket: bind %q: %w", listenAddr, err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	log.Info("socket bound", "addr", listenAddr, "port", port)
	return &Socket{conn: conn, port: port, log: log}, nil
}

// Port reports the bound local port.
func (s *Socket) Port() int { return s.port }

// SendTo sends b to addr. UDP delivers the whole datagram or none of it;
// a short write here would indicate a misbehaving kernel, not a
// recoverable partial send.
func (s *Socket) SendTo(b []byte, addr wire.PeerAddress) (int, error) {
	return s.conn.WriteToUDP(b, addr.UDPAddr())
}

// RecvFrom reads one datagram into buf, returning its length and sender.
func (s *Socket) RecvFrom(buf []byte) (int, wire.PeerAddress, error) {
	n, udpAddr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return n, wire.PeerAddress{}, err
	}
	return n, wire.PeerAddressFromUDP(udpAddr), nil
}

// Fd returns the raw file descriptor for readiness polling.
func (s *Socket) Fd() int {
	raw, err := s.conn.SyscallConn()
	if err != nil {
		return -1
	}
	var fd int
	_ = raw.Control(func(descriptor uintptr) {
		fd = int(descriptor)
	})
	return fd
}

// Close releases the socket.
func (s *Socket) Close() error { return s.conn.Close() }
