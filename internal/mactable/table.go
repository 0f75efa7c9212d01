// Package mactable is the learning bridge's forwarding cache: it maps
// (MAC, VLAN) pairs to the peer address last seen as their source, with a
// per-entry deadline reclaimed by periodic housekeeping.
package mactable

import (
	"log/slog"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/ethernet"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

// key is the map key: a MAC plus the VLAN it was observed on. VLAN 0 and
// VLAN 4094 map distinct entries even for the same MAC, since vlan is part
// of the key.
type key struct {
	mac  ethernet.Mac
	vlan ethernet.VlanId
}

type entry struct {
	addr     wire.PeerAddress
	deadline time.Time
}

// Table is the MAC learning cache. Not safe for concurrent use — per the
// single-writer invariant, it is owned and mutated only by the switching
// engine's event loop goroutine.
type Table struct {
	entries map[key]entry
	timeout time.Duration
	log     *slog.Logger
}

// New creates a MAC table whose entries expire timeout after their last
// refresh.
func New(timeout time.Duration, log *slog.Logger) *Table {
	return &Table{
		entries: make(map[key]entry),
		timeout: timeout,
		log:     log,
	}
}

// Learn inserts or overwrites the mapping for (mac, vlan), setting its
// deadline to now+timeout. A new key is logged; relearning an existing key
// with a different address is silent, per spec (avoids log spam on
// topology churn).
func (t *Table) Learn(mac ethernet.Mac, vlan ethernet.VlanId, addr wire.PeerAddress, now time.Time) {
	k := key{mac: mac, vlan: vlan}
	_, existed := t.entries[k]
	t.entries[k] = entry{addr: addr, deadline: now.Add(t.timeout)}
	if !existed {
		t.log.Info("learned mac", "mac", mac, "vlan", vlan, "peer", addr)
	}
}

// Lookup returns the currently mapped peer address for (mac, vlan),
// regardless of whether its deadline has passed — eviction is the
// housekeeper's responsibility, not Lookup's.
func (t *Table) Lookup(mac ethernet.Mac, vlan ethernet.VlanId) (wire.PeerAddress, bool) {
	e, ok := t.entries[key{mac: mac, vlan: vlan}]
	if !ok {
		return wire.PeerAddress{}, false
	}
	return e.addr, true
}

// Timeout evicts every entry whose deadline is strictly before now.
func (t *Table) Timeout(now time.Time) {
	for k, e := range t.entries {
		if e.deadline.Before(now) {
			delete(t.entries, k)
			t.log.Info("forgot mac", "mac", k.mac, "vlan", k.vlan)
		}
	}
}

// Len reports the current number of entries, for diagnostics.
func (t *Table) Len() int { return len(t.entries) }
