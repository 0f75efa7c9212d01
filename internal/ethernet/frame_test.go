package ethernet

import (
	"bytes"
	"testing"
)

func buildUntagged(dst, src Mac, etherType uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:6], dst[:])
	copy(buf[6:12], src[:])
	buf[12] = byte(etherType >> 8)
	buf[13] = byte(etherType)
	copy(buf[HeaderSize:], payload)
	return buf
}

func buildTagged(dst, src Mac, vlan VlanId, etherType uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+VLANTagSize+len(payload))
	copy(buf[0:6], dst[:])
	copy(buf[6:12], src[:])
	buf[12], buf[13] = 0x81, 0x00
	buf[14] = byte(vlan >> 8)
	buf[15] = byte(vlan)
	buf[16] = byte(etherType >> 8)
	buf[17] = byte(etherType)
	copy(buf[HeaderSize+VLANTagSize:], payload)
	return buf
}

func TestDecodeUntagged(t *testing.T) {
	dst := Mac{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
	src := Mac{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	raw := buildUntagged(dst, src, 0x0800, []byte("payload"))

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Dst != dst || f.Src != src || f.Vlan != 0 || f.EtherType != 0x0800 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if !bytes.Equal(f.Payload, []byte("payload")) {
		t.Fatalf("payload mismatch: %q", f.Payload)
	}
}

func TestDecodeTagged(t *testing.T) {
	dst := Mac{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
	src := Mac{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	raw := buildTagged(dst, src, 10, 0x0800, []byte("hi"))

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Vlan != 10 {
		t.Fatalf("vlan = %d, want 10", f.Vlan)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on truncated frame")
	}
	var pe *ParseError
	_, err := Decode([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("got %T, want *ParseError", err)
	}
	_ = pe
}

func TestDecodeTruncatedVlanTag(t *testing.T) {
	raw := []byte{
		0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb,
		0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa,
		0x81, 0x00, // TPID only, tag body missing
	}
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error on truncated VLAN tag")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Frame{
		{
			Dst: Mac{1, 2, 3, 4, 5, 6}, Src: Mac{6, 5, 4, 3, 2, 1},
			EtherType: 0x0800, Vlan: 0, Payload: []byte("untagged"),
		},
		{
			Dst: Mac{1, 2, 3, 4, 5, 6}, Src: Mac{6, 5, 4, 3, 2, 1},
			EtherType: 0x86DD, Vlan: 4094, Payload: []byte("tagged at max vlan"),
		},
		{
			Dst: Mac{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Src: Mac{6, 5, 4, 3, 2, 1},
			EtherType: 0x0806, Vlan: 1, Payload: nil,
		},
	}
	for _, f := range cases {
		buf := make([]byte, MaxFrameSize)
		n, err := Encode(f, buf)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(buf[:n])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Dst != f.Dst || got.Src != f.Src || got.Vlan != f.Vlan || got.EtherType != f.EtherType {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
		}
		if !bytes.Equal(got.Payload, f.Payload) {
			t.Fatalf("payload round trip mismatch: got %q, want %q", got.Payload, f.Payload)
		}
	}
}

func TestEncodeBufferTooSmall(t *testing.T) {
	f := Frame{Payload: make([]byte, 100)}
	buf := make([]byte, 10)
	if _, err := Encode(f, buf); err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}

func TestMacBroadcastMulticast(t *testing.T) {
	bcast := Mac{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if !bcast.IsBroadcast() || !bcast.IsMulticast() {
		t.Fatal("broadcast MAC must be both broadcast and multicast")
	}
	mcast := Mac{0x01, 0, 0, 0, 0, 0}
	if mcast.IsBroadcast() || !mcast.IsMulticast() {
		t.Fatal("multicast bit MAC must be multicast but not broadcast")
	}
	unicast := Mac{0x02, 0, 0, 0, 0, 0}
	if unicast.IsMulticast() {
		t.Fatal("locally administered unicast MAC flagged as multicast")
	}
}

func TestMacString(t *testing.T) {
	m := Mac{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if got, want := m.String(), "aa:bb:cc:dd:ee:ff"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
