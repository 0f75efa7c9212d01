package agent

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/unicornultrafoundation/meshbridge/internal/udpsocket"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sendGetPeers must not touch the engine at all, since it is called from
// the controller-client goroutine. A bare Agent with only a socket bound
// (no device, no engine) should be able to send a well-formed GetPeers
// datagram to a peer.
func TestSendGetPeersWritesWellFormedDatagram(t *testing.T) {
	log := discardLog()

	a := &Agent{
		config: Config{Token: 0xdeadbeefcafebabe},
		log:    log,
	}
	socket, err := udpsocket.Bind("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer socket.Close()
	a.socket = socket

	peer, err := udpsocket.Bind("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("Bind peer: %v", err)
	}
	defer peer.Close()

	peerAddr := wire.PeerAddressFromUDP(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: peer.Port()})
	if err := a.sendGetPeers(peerAddr); err != nil {
		t.Fatalf("sendGetPeers: %v", err)
	}

	buf := make([]byte, wire.MinScratchBufferSize)
	n, _, err := peer.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}

	token, msg, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if token != a.config.Token {
		t.Fatalf("token = %x, want %x", token, a.config.Token)
	}
	if _, ok := msg.(wire.GetPeersMessage); !ok {
		t.Fatalf("got %T, want GetPeersMessage", msg)
	}
}

func TestPeerCountWithoutEngineIsZero(t *testing.T) {
	a := &Agent{log: discardLog()}
	if got := a.PeerCount(); got != 0 {
		t.Fatalf("PeerCount() = %d, want 0", got)
	}
}
