// Package eventloop is the single-threaded readiness multiplexer over the
// datagram socket and the virtual device. It drains every ready source
// before running housekeeping, and guarantees housekeeping progress at
// least once per second even when idle.
package eventloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/engine"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

const (
	socketTag = 0
	deviceTag = 1

	housekeepInterval = time.Second
	maxDatagramSize   = 64 * 1024
)

// Reader is a non-blocking readable source with a raw descriptor for
// readiness polling.
type Reader interface {
	Fd() int
}

// Socket is the datagram source side of the loop.
type Socket interface {
	Reader
	RecvFrom(buf []byte) (int, wire.PeerAddress, error)
}

// Device is the virtual-device source side of the loop.
type Device interface {
	Reader
	Read(buf []byte) (int, error)
}

// Poller reports which of the two tagged file descriptors are ready to
// read, blocking up to timeout. It abstracts the platform polling
// mechanism (epoll on Linux) so Loop itself stays platform-neutral and
// unit-testable via a fake.
type Poller interface {
	// Wait blocks until at least one fd is ready or timeout elapses,
	// returning the tags (socketTag/deviceTag) that are ready.
	Wait(timeout time.Duration) ([]int, error)
	Close() error
}

// Loop is the event loop. It owns no table state itself — all dispatch is
// delegated to an *engine.Engine — and performs exactly the I/O described
// in the specification: one non-blocking read per ready source per tick,
// then an unconditional housekeeping check.
type Loop struct {
	poller Poller
	socket Socket
	device Device
	eng    *engine.Engine
	log    *slog.Logger

	lastHousekeep time.Time
	buf           []byte
}

// New constructs a Loop. poller must already have socket and device
// registered under socketTag/deviceTag respectively (NewEpollPoller does
// this on Linux).
func New(poller Poller, socket Socket, device Device, eng *engine.Engine, log *slog.Logger) *Loop {
	return &Loop{
		poller: poller,
		socket: socket,
		device: device,
		eng:    eng,
		log:    log.With("component", "eventloop"),
		buf:    make([]byte, maxDatagramSize),
	}
}

// Run blocks until ctx is cancelled or a read on either source fails
// fatally. Read errors on the socket or device are fatal, per spec: the
// endpoints are not expected to recover while the process runs.
func (l *Loop) Run(ctx context.Context) error {
	l.lastHousekeep = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready, err := l.poller.Wait(housekeepInterval)
		if err != nil {
			return err
		}

		for _, tag := range ready {
			if err := l.drainOne(tag); err != nil {
				return err
			}
		}

		l.houseKeepIfDue(time.Now())
	}
}

// drainOne performs exactly one non-blocking read from the source named
// by tag and dispatches the resulting unit to the engine. A parse or
// dispatch error on that single unit is logged and does not propagate; a
// read error on the underlying source does propagate, since that
// indicates the endpoint itself is gone.
func (l *Loop) drainOne(tag int) error {
	switch tag {
	case socketTag:
		n, src, err := l.socket.RecvFrom(l.buf)
		if err != nil {
			return err
		}
		if err := l.eng.HandleRemoteDatagram(l.buf[:n], src); err != nil {
			l.log.Debug("dropped datagram", "peer", src, "error", err)
		}
	case deviceTag:
		n, err := l.device.Read(l.buf)
		if err != nil {
			return err
		}
		if err := l.eng.HandleLocalFrame(l.buf[:n]); err != nil {
			l.log.Debug("dropped local frame", "error", err)
		}
	}
	return nil
}

// houseKeepIfDue runs housekeeping once now is at least housekeepInterval
// past the last run. This is the corrected form of the cadence guard; the
// original comparison (last < now + interval) is always true and never
// actually gates anything.
func (l *Loop) houseKeepIfDue(now time.Time) {
	if now.Sub(l.lastHousekeep) >= housekeepInterval {
		l.eng.Housekeep(now)
		l.lastHousekeep = now
	}
}
