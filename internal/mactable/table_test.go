package mactable

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/ethernet"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLearnAndLookup(t *testing.T) {
	tbl := New(time.Minute, discardLog())
	mac := ethernet.Mac{1, 2, 3, 4, 5, 6}
	addr := wire.PeerAddress{Family: wire.AddrFamilyV4, Port: 1000}
	now := time.Unix(0, 0)

	if _, ok := tbl.Lookup(mac, 0); ok {
		t.Fatal("expected miss before learning")
	}
	tbl.Learn(mac, 0, addr, now)
	got, ok := tbl.Lookup(mac, 0)
	if !ok || got != addr {
		t.Fatalf("Lookup after Learn = %+v, %v", got, ok)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
}

func TestLearnSameMacDifferentVlan(t *testing.T) {
	tbl := New(time.Minute, discardLog())
	mac := ethernet.Mac{1, 2, 3, 4, 5, 6}
	addrA := wire.PeerAddress{Family: wire.AddrFamilyV4, Port: 1}
	addrB := wire.PeerAddress{Family: wire.AddrFamilyV4, Port: 2}
	now := time.Unix(0, 0)

	tbl.Learn(mac, 10, addrA, now)
	tbl.Learn(mac, 20, addrB, now)

	gotA, _ := tbl.Lookup(mac, 10)
	gotB, _ := tbl.Lookup(mac, 20)
	if gotA != addrA || gotB != addrB {
		t.Fatalf("vlan separation failed: gotA=%+v gotB=%+v", gotA, gotB)
	}
}

func TestRelearnUpdatesAddress(t *testing.T) {
	tbl := New(time.Minute, discardLog())
	mac := ethernet.Mac{1, 2, 3, 4, 5, 6}
	old := wire.PeerAddress{Family: wire.AddrFamilyV4, Port: 1}
	new_ := wire.PeerAddress{Family: wire.AddrFamilyV4, Port: 2}
	now := time.Unix(0, 0)

	tbl.Learn(mac, 0, old, now)
	tbl.Learn(mac, 0, new_, now.Add(time.Second))

	got, _ := tbl.Lookup(mac, 0)
	if got != new_ {
		t.Fatalf("Lookup = %+v, want %+v", got, new_)
	}
}

func TestTimeoutEvictsExpired(t *testing.T) {
	tbl := New(10*time.Second, discardLog())
	mac1 := ethernet.Mac{1, 1, 1, 1, 1, 1}
	mac2 := ethernet.Mac{2, 2, 2, 2, 2, 2}
	start := time.Unix(0, 0)

	tbl.Learn(mac1, 0, wire.PeerAddress{Port: 1}, start)
	tbl.Learn(mac2, 0, wire.PeerAddress{Port: 2}, start.Add(9*time.Second))

	tbl.Timeout(start.Add(11 * time.Second))

	if _, ok := tbl.Lookup(mac1, 0); ok {
		t.Fatal("expected mac1 to be evicted")
	}
	if _, ok := tbl.Lookup(mac2, 0); !ok {
		t.Fatal("expected mac2 to still be present")
	}
}

func TestTimeoutNoneExpired(t *testing.T) {
	tbl := New(time.Minute, discardLog())
	mac := ethernet.Mac{1, 2, 3, 4, 5, 6}
	now := time.Unix(0, 0)
	tbl.Learn(mac, 0, wire.PeerAddress{Port: 1}, now)
	tbl.Timeout(now.Add(time.Second))
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
}
