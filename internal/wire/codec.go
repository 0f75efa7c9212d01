package wire

import (
	"encoding/binary"
	"errors"
)

// Tag identifies the on-wire message kind. Values are arbitrary but must be
// identical across every peer in a cloud.
type Tag uint8

const (
	TagFrame    Tag = 0
	TagPeers    Tag = 1
	TagGetPeers Tag = 2
	TagClose    Tag = 3
)

const (
	// TokenSize is the length of the admission token prefix.
	TokenSize = 8
	// TagSize is the length of the message-kind tag.
	TagSize = 1
	// HeaderSize is the combined token+tag prefix length.
	HeaderSize = TokenSize + TagSize
	// PeerAddrWireSizeV4 is the encoded size of one v4 PeerAddress entry.
	PeerAddrWireSizeV4 = 1 + 4 + 2
	// PeerAddrWireSizeV6 is the encoded size of one v6 PeerAddress entry.
	PeerAddrWireSizeV6 = 1 + 16 + 2
	// MinScratchBufferSize is the minimum scratch buffer the codec requires
	// to cover a jumbo Ethernet frame plus header overhead.
	MinScratchBufferSize = 64 * 1024
)

// ParseError is returned by Decode on truncation, an unknown tag, or a
// malformed address family.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "wire: " + e.Reason }

// FrameMessage carries an Ethernet frame, as produced by the Ethernet
// encoder, to be delivered as-if received on the remote bridge.
type FrameMessage struct {
	// Data aliases the decoder's input buffer on Decode, and the caller's
	// own frame bytes on Encode; the codec never copies it.
	Data []byte
}

// PeersMessage gossips a list of known peer addresses.
type PeersMessage struct {
	Peers []PeerAddress
}

// GetPeersMessage requests that the recipient reply with its current peer list.
type GetPeersMessage struct{}

// CloseMessage is a voluntary departure notification.
type CloseMessage struct{}

// Message is the sum type of the four on-wire message kinds.
type Message interface {
	tag() Tag
}

func (FrameMessage) tag() Tag    { return TagFrame }
func (PeersMessage) tag() Tag    { return TagPeers }
func (GetPeersMessage) tag() Tag { return TagGetPeers }
func (CloseMessage) tag() Tag    { return TagClose }

// Encode writes token and msg into buf, returning the number of bytes
// written. buf must be at least MinScratchBufferSize long to guarantee room
// for a jumbo Frame message; Encode performs no allocation for FrameMessage.
func Encode(token uint64, msg Message, buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, errors.New("wire: scratch buffer smaller than header")
	}
	binary.BigEndian.PutUint64(buf[0:8], token)
	buf[8] = byte(msg.tag())
	pos := HeaderSize

	switch m := msg.(type) {
	case FrameMessage:
		if len(buf) < pos+len(m.Data) {
			return 0, errors.New("wire: scratch buffer too small for frame")
		}
		n := copy(buf[pos:], m.Data)
		pos += n
	case PeersMessage:
		need := 2
		for _, p := range m.Peers {
			need += peerAddrWireSize(p)
		}
		if len(buf) < pos+need {
			return 0, errors.New("wire: scratch buffer too small for peers list")
		}
		binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(len(m.Peers)))
		pos += 2
		for _, p := range m.Peers {
			n, err := encodePeerAddr(p, buf[pos:])
			if err != nil {
				return 0, err
			}
			pos += n
		}
	case GetPeersMessage:
		// no body
	case CloseMessage:
		// no body
	default:
		return 0, errors.New("wire: unknown message type")
	}
	return pos, nil
}

// Decode parses a datagram payload into its admission token and message.
// The returned FrameMessage.Data aliases data — the caller must not retain
// data beyond the lifetime of the read buffer if it intends to reuse it.
func Decode(data []byte) (token uint64, msg Message, err error) {
	if len(data) < HeaderSize {
		return 0, nil, &ParseError{Reason: "datagram shorter than header"}
	}
	token = binary.BigEndian.Uint64(data[0:8])
	tag := Tag(data[8])
	body := data[HeaderSize:]

	switch tag {
	case TagFrame:
		return token, FrameMessage{Data: body}, nil
	case TagPeers:
		peers, err := decodePeersBody(body)
		if err != nil {
			return 0, nil, err
		}
		return token, PeersMessage{Peers: peers}, nil
	case TagGetPeers:
		return token, GetPeersMessage{}, nil
	case TagClose:
		return token, CloseMessage{}, nil
	default:
		return 0, nil, &ParseError{Reason: "unknown message tag"}
	}
}

func peerAddrWireSize(p PeerAddress) int {
	if p.Family == AddrFamilyV4 {
		return PeerAddrWireSizeV4
	}
	return PeerAddrWireSizeV6
}

func encodePeerAddr(p PeerAddress, buf []byte) (int, error) {
	switch p.Family {
	case AddrFamilyV4:
		if len(buf) < PeerAddrWireSizeV4 {
			return 0, errors.New("wire: buffer too small for v4 peer address")
		}
		buf[0] = byte(AddrFamilyV4)
		copy(buf[1:5], p.IP[:4])
		binary.BigEndian.PutUint16(buf[5:7], p.Port)
		return PeerAddrWireSizeV4, nil
	case AddrFamilyV6:
		if len(buf) < PeerAddrWireSizeV6 {
			return 0, errors.New("wire: buffer too small for v6 peer address")
		}
		buf[0] = byte(AddrFamilyV6)
		copy(buf[1:17], p.IP[:])
		binary.BigEndian.PutUint16(buf[17:19], p.Port)
		return PeerAddrWireSizeV6, nil
	default:
		return 0, errors.New("wire: unknown address family")
	}
}

func decodePeersBody(body []byte) ([]PeerAddress, error) {
	if len(body) < 2 {
		return nil, &ParseError{Reason: "truncated peers count"}
	}
	count := binary.BigEndian.Uint16(body[0:2])
	pos := 2
	peers := make([]PeerAddress, 0, count)
	for i := 0; i < int(count); i++ {
		if pos >= len(body) {
			return nil, &ParseError{Reason: "truncated peers list"}
		}
		family := AddrFamily(body[pos])
		var entry PeerAddress
		entry.Family = family
		switch family {
		case AddrFamilyV4:
			if len(body) < pos+PeerAddrWireSizeV4 {
				return nil, &ParseError{Reason: "truncated v4 peer entry"}
			}
			copy(entry.IP[:4], body[pos+1:pos+5])
			entry.Port = binary.BigEndian.Uint16(body[pos+5 : pos+7])
			pos += PeerAddrWireSizeV4
		case AddrFamilyV6:
			if len(body) < pos+PeerAddrWireSizeV6 {
				return nil, &ParseError{Reason: "truncated v6 peer entry"}
			}
			copy(entry.IP[:], body[pos+1:pos+17])
			entry.Port = binary.BigEndian.Uint16(body[pos+17 : pos+19])
			pos += PeerAddrWireSizeV6
		default:
			return nil, &ParseError{Reason: "malformed address family"}
		}
		peers = append(peers, entry)
	}
	return peers, nil
}
