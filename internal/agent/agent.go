// Package agent wires the core single-threaded bridge (engine, event loop,
// TAP device, UDP socket) together with the optional controller bootstrap
// channel into one runnable node process.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/unicornultrafoundation/meshbridge/internal/engine"
	"github.com/unicornultrafoundation/meshbridge/internal/eventloop"
	"github.com/unicornultrafoundation/meshbridge/internal/identity"
	"github.com/unicornultrafoundation/meshbridge/internal/tapdevice"
	"github.com/unicornultrafoundation/meshbridge/internal/udpsocket"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

// Agent is a running node: one identity, one TAP device, one UDP socket,
// one switching engine, and the single-threaded loop that drives them.
type Agent struct {
	config   Config
	identity *identity.Identity

	device *tapdevice.LinuxDevice
	socket *udpsocket.Socket
	eng    *engine.Engine
	loop   *eventloop.Loop
	poller *eventloop.EpollPoller

	ctrlCli *ControllerClient
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Agent and opens its identity, but does not yet open the
// TAP device or UDP socket — that happens in Start.
func New(cfg Config, log *slog.Logger) (*Agent, error) {
	id, err := identity.LoadOrGenerate(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	log.Info("identity loaded", "address", id.Address, "pubkey", id.PublicKeyHex()[:16]+"...")

	return &Agent{
		config:   cfg,
		identity: id,
		log:      log,
	}, nil
}

// Identity returns the node's identity.
func (a *Agent) Identity() *identity.Identity {
	return a.identity
}

// Start opens the TAP device and UDP socket, constructs the switching
// engine, and begins running the single-threaded event loop on its own
// goroutine. If a controller URL is configured, the bootstrap client also
// starts on a separate goroutine; it reaches the wire protocol only through
// sendGetPeers, never by calling into the engine directly.
func (a *Agent) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	socket, err := udpsocket.Bind(a.config.ListenAddr, a.log)
	if err != nil {
		return fmt.Errorf("bind socket: %w", err)
	}
	a.socket = socket

	device, err := tapdevice.Open(a.config.DeviceName)
	if err != nil {
		socket.Close()
		return fmt.Errorf("open device: %w", err)
	}
	a.device = device

	if err := a.configureDevice(); err != nil {
		a.log.Warn("device configuration incomplete", "err", err)
	}

	a.eng = engine.New(engine.Config{
		Token:        a.config.Token,
		MacTimeout:   a.config.MacTimeout,
		PeerTimeout:  a.config.PeerTimeout,
		ScratchBytes: a.config.DeviceMTU + 64,
	}, socket, device, a.log)

	poller, err := eventloop.NewEpollPoller(socket.Fd(), device.Fd())
	if err != nil {
		socket.Close()
		device.Close()
		return fmt.Errorf("create poller: %w", err)
	}
	a.poller = poller
	a.loop = eventloop.New(poller, socket, device, a.eng, a.log)

	for _, sp := range a.config.StaticPeers {
		udpAddr, err := net.ResolveUDPAddr("udp", sp.Address)
		if err != nil {
			a.log.Error("resolve static peer", "addr", sp.Address, "err", err)
			continue
		}
		if err := a.sendGetPeers(wire.PeerAddressFromUDP(udpAddr)); err != nil {
			a.log.Error("connect to static peer", "addr", sp.Address, "err", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.loop.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("event loop exited", "err", err)
		}
	}()

	if a.config.ControllerURL != "" {
		a.ctrlCli = NewControllerClient(a.config.ControllerURL, a, a.log)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.ctrlCli.Run(ctx)
		}()
	}

	a.log.Info("node started",
		"address", a.identity.Address,
		"listen", a.config.ListenAddr,
		"device", device.Name(),
		"static_peers", len(a.config.StaticPeers),
	)
	return nil
}

func (a *Agent) configureDevice() error {
	mtu := a.config.DeviceMTU
	if mtu == 0 {
		mtu = 1500
	}
	if err := a.device.SetMTU(mtu); err != nil {
		return fmt.Errorf("set mtu: %w", err)
	}

	if err := a.device.SetMACAddress(a.identity.Address.GenerateMAC()); err != nil {
		return fmt.Errorf("set mac: %w", err)
	}

	if a.config.DeviceIPv4 != "" {
		ip, ipNet, err := net.ParseCIDR(a.config.DeviceIPv4)
		if err != nil {
			return fmt.Errorf("parse device address: %w", err)
		}
		if err := a.device.AddIPAddress(ip, ipNet.Mask); err != nil {
			return fmt.Errorf("add device address: %w", err)
		}
	}

	return a.device.SetUp()
}

// Stop gracefully shuts down the node and waits for its goroutines to exit.
func (a *Agent) Stop() {
	a.log.Info("node stopping...")
	if a.cancel != nil {
		a.cancel()
	}
	if a.poller != nil {
		a.poller.Close()
	}
	if a.socket != nil {
		a.socket.Close()
	}
	if a.device != nil {
		a.device.Close()
	}
	a.wg.Wait()
	a.log.Info("node stopped")
}

// PeerCount reports the current engine peer count, for status reporting.
func (a *Agent) PeerCount() int {
	if a.eng == nil {
		return 0
	}
	return a.eng.PeerCount()
}

// sendGetPeers initiates discovery of addr by sending it a GetPeers
// request directly over the socket, bypassing the engine. The engine is
// not safe for concurrent use — it is driven exclusively by the event
// loop goroutine — so ControllerClient (running on its own goroutine)
// must never call into it. net.UDPConn permits concurrent writers, so a
// raw send here is safe; the peer only actually enters the engine's peer
// list once its reply is processed by the event loop.
func (a *Agent) sendGetPeers(addr wire.PeerAddress) error {
	buf := make([]byte, wire.MinScratchBufferSize)
	n, err := wire.Encode(a.config.Token, wire.GetPeersMessage{}, buf)
	if err != nil {
		return err
	}
	_, err = a.socket.SendTo(buf[:n], addr)
	return err
}
