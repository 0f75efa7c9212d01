// Package ethernet parses and encodes the Ethernet frames carried over the
// bridge: destination/source MAC, an optional single 802.1Q VLAN tag, an
// ethertype, and payload.
package ethernet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

const (
	// HeaderSize is the untagged Ethernet header length (dst+src+ethertype).
	HeaderSize = 14
	// VLANTagSize is the length of an 802.1Q tag (TPID + TCI).
	VLANTagSize = 4
	// MinFrameSize is the minimum valid untagged frame.
	MinFrameSize = HeaderSize
	// MaxFrameSize is the largest frame the bridge will carry (jumbo).
	MaxFrameSize = 9018 // 9000 payload + 18-byte tagged header

	// EtherTypeVLAN is the TPID marking an 802.1Q tagged frame.
	EtherTypeVLAN = 0x8100
)

// Mac is a 6-byte hardware address, compared and hashed by value.
type Mac [6]byte

// MacFromBytes copies b (must be 6 bytes) into a Mac.
func MacFromBytes(b []byte) Mac {
	var m Mac
	copy(m[:], b)
	return m
}

// String renders the MAC as colon-separated hex, e.g. "aa:bb:cc:dd:ee:ff".
func (m Mac) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsBroadcast reports whether m is the all-ones broadcast address.
func (m Mac) IsBroadcast() bool {
	return m == Mac{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// IsMulticast reports whether m has the multicast bit set (broadcast included).
func (m Mac) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// HardwareAddr returns m as a net.HardwareAddr for interop with net-facing code.
func (m Mac) HardwareAddr() net.HardwareAddr {
	h := make(net.HardwareAddr, 6)
	copy(h, m[:])
	return h
}

// VlanId is a 12-bit VLAN identifier; 0 means "untagged".
type VlanId uint16

// ParseError is returned by Decode on a truncated or malformed frame.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "ethernet: " + e.Reason }

// Frame is a parsed Ethernet frame.
type Frame struct {
	Dst       Mac
	Src       Mac
	EtherType uint16
	Vlan      VlanId
	Payload   []byte
}

// Decode parses an Ethernet frame, honoring a single optional 802.1Q tag.
func Decode(data []byte) (Frame, error) {
	if len(data) < MinFrameSize {
		return Frame{}, &ParseError{Reason: "frame shorter than minimum header"}
	}
	f := Frame{
		Dst: MacFromBytes(data[0:6]),
		Src: MacFromBytes(data[6:12]),
	}
	outer := binary.BigEndian.Uint16(data[12:14])
	pos := HeaderSize
	if outer == EtherTypeVLAN {
		if len(data) < HeaderSize+VLANTagSize {
			return Frame{}, &ParseError{Reason: "truncated VLAN tag"}
		}
		tci := binary.BigEndian.Uint16(data[14:16])
		f.Vlan = VlanId(tci & 0x0fff)
		f.EtherType = binary.BigEndian.Uint16(data[16:18])
		pos += VLANTagSize
	} else {
		f.EtherType = outer
	}
	f.Payload = data[pos:]
	return f, nil
}

// Encode serializes f into buf, returning the number of bytes written.
// buf must be at least large enough to hold the (possibly tagged) header
// plus the payload; an error is returned otherwise.
func Encode(f Frame, buf []byte) (int, error) {
	pos := HeaderSize
	if f.Vlan != 0 {
		pos += VLANTagSize
	}
	total := pos + len(f.Payload)
	if len(buf) < total {
		return 0, errors.New("ethernet: scratch buffer too small")
	}
	copy(buf[0:6], f.Dst[:])
	copy(buf[6:12], f.Src[:])
	if f.Vlan != 0 {
		binary.BigEndian.PutUint16(buf[12:14], EtherTypeVLAN)
		binary.BigEndian.PutUint16(buf[14:16], uint16(f.Vlan)&0x0fff)
		binary.BigEndian.PutUint16(buf[16:18], f.EtherType)
	} else {
		binary.BigEndian.PutUint16(buf[12:14], f.EtherType)
	}
	copy(buf[pos:total], f.Payload)
	return total, nil
}
