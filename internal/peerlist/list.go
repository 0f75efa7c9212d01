// Package peerlist tracks the set of peer addresses currently considered
// members of the overlay, with soft-state expiry.
package peerlist

import (
	"log/slog"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

// List is the peer membership set. Not safe for concurrent use; owned by
// the event loop's single writer goroutine.
type List struct {
	deadlines map[wire.PeerAddress]time.Time
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a peer list whose entries expire timeout after their last refresh.
func New(timeout time.Duration, log *slog.Logger) *List {
	return &List{
		deadlines: make(map[wire.PeerAddress]time.Time),
		timeout:   timeout,
		log:       log,
	}
}

// Contains reports whether addr is currently a member.
func (l *List) Contains(addr wire.PeerAddress) bool {
	_, ok := l.deadlines[addr]
	return ok
}

// Add inserts addr, or refreshes its deadline if already present. A brand
// new member is logged; a refresh is not.
func (l *List) Add(addr wire.PeerAddress, now time.Time) {
	_, existed := l.deadlines[addr]
	l.deadlines[addr] = now.Add(l.timeout)
	if !existed {
		l.log.Info("peer joined", "peer", addr)
	}
}

// Remove evicts addr if present, logging only when it actually existed.
func (l *List) Remove(addr wire.PeerAddress) {
	if _, existed := l.deadlines[addr]; existed {
		delete(l.deadlines, addr)
		l.log.Info("peer left", "peer", addr)
	}
}

// Snapshot returns a copy of the currently known peer addresses, in
// unspecified order.
func (l *List) Snapshot() []wire.PeerAddress {
	out := make([]wire.PeerAddress, 0, len(l.deadlines))
	for addr := range l.deadlines {
		out = append(out, addr)
	}
	return out
}

// Timeout evicts every peer whose deadline is strictly before now.
func (l *List) Timeout(now time.Time) {
	for addr, deadline := range l.deadlines {
		if deadline.Before(now) {
			delete(l.deadlines, addr)
			l.log.Info("peer timed out", "peer", addr)
		}
	}
}

// Len reports the current membership count, for diagnostics.
func (l *List) Len() int { return len(l.deadlines) }
