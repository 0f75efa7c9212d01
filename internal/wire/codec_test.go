package wire

import (
	"bytes"
	"net"
	"testing"
)

const testToken uint64 = 0x00000000DEADBEEF

func TestRoundTripFrame(t *testing.T) {
	buf := make([]byte, MinScratchBufferSize)
	want := FrameMessage{Data: []byte("an ethernet frame's bytes")}
	n, err := Encode(testToken, want, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	token, msg, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if token != testToken {
		t.Fatalf("token = %x, want %x", token, testToken)
	}
	got, ok := msg.(FrameMessage)
	if !ok {
		t.Fatalf("got %T, want FrameMessage", msg)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Fatalf("data mismatch: got %q want %q", got.Data, want.Data)
	}
}

func TestRoundTripPeersEmpty(t *testing.T) {
	buf := make([]byte, MinScratchBufferSize)
	n, err := Encode(testToken, PeersMessage{}, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, msg, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := msg.(PeersMessage)
	if !ok {
		t.Fatalf("got %T, want PeersMessage", msg)
	}
	if len(got.Peers) != 0 {
		t.Fatalf("expected empty peers, got %d", len(got.Peers))
	}
}

func TestRoundTripPeersMixedFamily(t *testing.T) {
	buf := make([]byte, MinScratchBufferSize)
	v4 := PeerAddressFromUDP(&net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 7331})
	v6 := PeerAddressFromUDP(&net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 51820})
	want := PeersMessage{Peers: []PeerAddress{v4, v6}}

	n, err := Encode(testToken, want, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	token, msg, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if token != testToken {
		t.Fatalf("token mismatch")
	}
	got := msg.(PeersMessage)
	if len(got.Peers) != 2 || got.Peers[0] != v4 || got.Peers[1] != v6 {
		t.Fatalf("peers mismatch: got %+v", got.Peers)
	}
}

func TestRoundTripGetPeersAndClose(t *testing.T) {
	buf := make([]byte, MinScratchBufferSize)

	n, err := Encode(testToken, GetPeersMessage{}, buf)
	if err != nil {
		t.Fatalf("Encode GetPeers: %v", err)
	}
	_, msg, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode GetPeers: %v", err)
	}
	if _, ok := msg.(GetPeersMessage); !ok {
		t.Fatalf("got %T, want GetPeersMessage", msg)
	}

	n, err = Encode(testToken, CloseMessage{}, buf)
	if err != nil {
		t.Fatalf("Encode Close: %v", err)
	}
	_, msg, err = Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode Close: %v", err)
	}
	if _, ok := msg.(CloseMessage); !ok {
		t.Fatalf("got %T, want CloseMessage", msg)
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[8] = 0x7f
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestDecodeMalformedAddressFamily(t *testing.T) {
	buf := make([]byte, MinScratchBufferSize)
	n, err := Encode(testToken, PeersMessage{Peers: []PeerAddress{{Family: 9}}}, buf)
	// Encode itself should reject an unknown family.
	if err == nil {
		t.Fatalf("expected Encode to reject unknown family, wrote %d bytes", n)
	}

	// Decode must reject a hand-built peers entry with an unknown family.
	raw := make([]byte, HeaderSize+2+PeerAddrWireSizeV4)
	raw[8] = byte(TagPeers)
	raw[HeaderSize+1] = 1 // count = 1
	raw[HeaderSize+2] = 9 // family
	if _, _, err := Decode(raw); err == nil {
		t.Fatal("expected Decode to reject unknown family")
	}
}

func TestDecodeTruncatedPeersCount(t *testing.T) {
	buf := make([]byte, HeaderSize+1)
	binary := buf[HeaderSize:]
	binary[0] = 0x00 // half of a 2-byte count
	buf[8] = byte(TagPeers)
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error for truncated peers count")
	}
}

func TestFrameEncodeNoAllocationPath(t *testing.T) {
	// Frame encode must not allocate a new slice for the payload; it
	// copies directly into the caller-provided buffer.
	buf := make([]byte, MinScratchBufferSize)
	data := []byte("hot path payload")
	n, err := Encode(testToken, FrameMessage{Data: data}, buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n != HeaderSize+len(data) {
		t.Fatalf("n = %d, want %d", n, HeaderSize+len(data))
	}
}
