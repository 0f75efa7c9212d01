// Package engine implements the switching and membership engine: the
// protocol handlers that turn raw device/socket I/O into MAC learning,
// peer gossip, and frame forwarding decisions. It owns the MAC table and
// peer list exclusively and is not safe for concurrent use — callers must
// serialize calls to it from a single goroutine (the event loop).
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/ethernet"
	"github.com/unicornultrafoundation/meshbridge/internal/mactable"
	"github.com/unicornultrafoundation/meshbridge/internal/peerlist"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

// ParseError wraps a malformed datagram or Ethernet frame encountered while
// handling a single inbound unit. The unit is dropped; the loop continues.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "engine: parse error: " + e.Reason }

// WrongToken is returned when an inbound datagram's admission token does
// not match the local token. The sender is not added to the peer list.
type WrongToken struct {
	Observed uint64
}

func (e *WrongToken) Error() string {
	return fmt.Sprintf("engine: wrong token: %#x", e.Observed)
}

// SocketError wraps a send failure or short write on the datagram socket.
// It is non-fatal: the destination peer is not evicted for a transient
// send failure.
type SocketError struct {
	Reason string
}

func (e *SocketError) Error() string { return "engine: socket error: " + e.Reason }

// TapdevError wraps a device write failure. The offending frame is lost;
// the loop continues.
type TapdevError struct {
	Reason string
}

func (e *TapdevError) Error() string { return "engine: device error: " + e.Reason }

// Socket is the datagram transport the engine sends encoded messages
// through. SendTo must either deliver the whole datagram or report an
// error; partial sends are treated as errors by callers.
type Socket interface {
	SendTo(b []byte, addr wire.PeerAddress) (int, error)
}

// Device is the virtual network device the engine injects decoded frames
// into. Write must write exactly one Ethernet frame; partial writes are
// an error.
type Device interface {
	Write(b []byte) (int, error)
}

// Config bundles the engine's fixed parameters.
type Config struct {
	Token        uint64
	MacTimeout   time.Duration
	PeerTimeout  time.Duration
	ScratchBytes int
}

// Engine is the switching and membership engine. It owns the MAC table and
// peer list, and mediates all I/O to Device and Socket.
type Engine struct {
	token       uint64
	peerTimeout time.Duration

	macs  *mactable.Table
	peers *peerlist.List

	socket Socket
	device Device

	scratch        []byte
	lastGossip     time.Time
	gossipInterval time.Duration
	log            *slog.Logger
}

// New constructs an Engine. socket and device are the external
// collaborators the engine drives; they are not opened or closed by the
// engine itself.
func New(cfg Config, socket Socket, device Device, log *slog.Logger) *Engine {
	scratch := cfg.ScratchBytes
	if scratch < wire.MinScratchBufferSize {
		scratch = wire.MinScratchBufferSize
	}
	return &Engine{
		token:          cfg.Token,
		peerTimeout:    cfg.PeerTimeout,
		macs:           mactable.New(cfg.MacTimeout, log.With("component", "mactable")),
		peers:          peerlist.New(cfg.PeerTimeout, log.With("component", "peerlist")),
		socket:         socket,
		device:         device,
		scratch:        make([]byte, scratch),
		gossipInterval: cfg.PeerTimeout / 2,
		log:            log.With("component", "engine"),
	}
}

// HandleLocalFrame processes one Ethernet frame read from the virtual
// device: it looks up the destination in the MAC table and unicasts on a
// hit, or floods to every known peer on a miss. Source learning is
// intentionally not performed here — the local frame's source MAC is a
// local endpoint, not reachable via any peer address.
func (e *Engine) HandleLocalFrame(raw []byte) error {
	f, err := ethernet.Decode(raw)
	if err != nil {
		e.log.Debug("dropping malformed local frame", "error", err)
		return &ParseError{Reason: err.Error()}
	}

	if addr, ok := e.macs.Lookup(f.Dst, f.Vlan); ok {
		return e.sendFrame(raw, addr)
	}
	return e.flood(raw, nil)
}

// HandleRemoteDatagram processes one datagram read from the socket,
// originating from src. A token mismatch rejects the sender without any
// table mutation.
func (e *Engine) HandleRemoteDatagram(raw []byte, src wire.PeerAddress) error {
	token, msg, err := wire.Decode(raw)
	if err != nil {
		e.log.Debug("dropping malformed datagram", "peer", src, "error", err)
		return &ParseError{Reason: err.Error()}
	}
	if token != e.token {
		e.log.Info("rejecting wrong token", "peer", src, "token", token)
		return &WrongToken{Observed: token}
	}

	switch m := msg.(type) {
	case wire.FrameMessage:
		return e.handleRemoteFrame(m, src)
	case wire.PeersMessage:
		return e.handlePeersGossip(m, src)
	case wire.GetPeersMessage:
		return e.handleGetPeers(src)
	case wire.CloseMessage:
		e.peers.Remove(src)
		return nil
	default:
		return &ParseError{Reason: "unrecognized message type"}
	}
}

func (e *Engine) handleRemoteFrame(m wire.FrameMessage, src wire.PeerAddress) error {
	f, err := ethernet.Decode(m.Data)
	if err != nil {
		return &ParseError{Reason: err.Error()}
	}
	if _, err := e.device.Write(m.Data); err != nil {
		return &TapdevError{Reason: err.Error()}
	}
	now := time.Now()
	e.peers.Add(src, now)
	e.macs.Learn(f.Src, f.Vlan, src, now)
	return nil
}

func (e *Engine) handlePeersGossip(m wire.PeersMessage, src wire.PeerAddress) error {
	now := time.Now()
	// Sender is added before the connect loop so that if it appears in
	// its own gossiped list, it is not re-contacted.
	e.peers.Add(src, now)
	for _, p := range m.Peers {
		if !e.peers.Contains(p) {
			if err := e.Connect(p); err != nil {
				e.log.Debug("connect attempt failed", "peer", p, "error", err)
			}
		}
	}
	return nil
}

func (e *Engine) handleGetPeers(src wire.PeerAddress) error {
	e.peers.Add(src, time.Now())
	return e.sendTo(wire.PeersMessage{Peers: e.peers.Snapshot()}, src)
}

// Connect initiates discovery of a not-yet-known peer by sending it a
// GetPeers request. It does not itself add addr to the peer list; the
// peer is added once it actually replies.
func (e *Engine) Connect(addr wire.PeerAddress) error {
	return e.sendTo(wire.GetPeersMessage{}, addr)
}

// sendFrame encodes raw (already-framed Ethernet bytes) as a Frame
// message and sends it to exactly one peer.
func (e *Engine) sendFrame(raw []byte, addr wire.PeerAddress) error {
	return e.sendTo(wire.FrameMessage{Data: raw}, addr)
}

// flood sends raw to every known peer except exclude (if non-nil). A send
// failure to one peer is logged and does not abort delivery to the rest.
func (e *Engine) flood(raw []byte, exclude *wire.PeerAddress) error {
	var firstErr error
	for _, p := range e.peers.Snapshot() {
		if exclude != nil && p == *exclude {
			continue
		}
		if err := e.sendFrame(raw, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) sendTo(msg wire.Message, addr wire.PeerAddress) error {
	n, err := wire.Encode(e.token, msg, e.scratch)
	if err != nil {
		return &ParseError{Reason: err.Error()}
	}
	sent, err := e.socket.SendTo(e.scratch[:n], addr)
	if err != nil {
		e.log.Error("send failed", "peer", addr, "error", err)
		return &SocketError{Reason: err.Error()}
	}
	if sent != n {
		e.log.Error("short send", "peer", addr, "wrote", sent, "want", n)
		return &SocketError{Reason: "short send"}
	}
	return nil
}

// Housekeep runs peer expiry, MAC expiry, and — if the gossip interval has
// elapsed — broadcasts the current peer snapshot to every known peer.
// Callers are expected to invoke this at least once per second; Housekeep
// itself performs no cadence gating (that is the event loop's job, since
// it alone tracks the last-housekeep instant).
func (e *Engine) Housekeep(now time.Time) {
	e.peers.Timeout(now)
	e.macs.Timeout(now)

	if e.lastGossip.IsZero() {
		e.lastGossip = now
	}
	if now.Sub(e.lastGossip) >= e.gossipInterval {
		e.gossipAll(now)
		e.lastGossip = e.lastGossip.Add(e.gossipInterval)
	}
}

func (e *Engine) gossipAll(now time.Time) {
	snapshot := e.peers.Snapshot()
	msg := wire.PeersMessage{Peers: snapshot}
	for _, p := range snapshot {
		if err := e.sendTo(msg, p); err != nil {
			e.log.Debug("gossip send failed", "peer", p, "error", err)
		}
	}
}

// PeerCount reports the current peer list size, for diagnostics.
func (e *Engine) PeerCount() int { return e.peers.Len() }

// MacCount reports the current MAC table size, for diagnostics.
func (e *Engine) MacCount() int { return e.macs.Len() }
