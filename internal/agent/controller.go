package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/unicornultrafoundation/meshbridge/internal/protocol"
	"github.com/unicornultrafoundation/meshbridge/internal/wire"
)

const (
	controllerReconnectDelay    = 5 * time.Second
	controllerPingInterval      = 30 * time.Second
	controllerWriteTimeout      = 10 * time.Second
	controllerMaxReconnectDelay = 60 * time.Second
)

// ControllerClient manages the bootstrap WebSocket connection to the admin
// controller. It only ever learns about peers and tokens through this
// channel — it never carries core wire-protocol datagrams.
type ControllerClient struct {
	url       string
	agent     *Agent
	conn      *websocket.Conn
	mu        sync.Mutex
	connected bool
	log       *slog.Logger
}

// NewControllerClient creates a new controller bootstrap client.
func NewControllerClient(url string, agent *Agent, log *slog.Logger) *ControllerClient {
	return &ControllerClient{
		url:   url,
		agent: agent,
		log:   log.With("component", "controller-client"),
	}
}

// Run starts the controller connection loop (blocking, with exponential
// backoff on repeated connect failures).
func (c *ControllerClient) Run(ctx context.Context) {
	delay := controllerReconnectDelay
	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.log.Error("controller connect failed", "err", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > controllerMaxReconnectDelay {
				delay = controllerMaxReconnectDelay
			}
			continue
		}

		delay = controllerReconnectDelay

		if err := c.readLoop(ctx); err != nil {
			c.log.Warn("controller connection lost", "err", err)
		}
		c.close()
	}
}

func (c *ControllerClient) connect(ctx context.Context) error {
	wsURL := c.url + "/api/v1/node/connect"
	c.log.Info("connecting to controller", "url", wsURL)

	header := http.Header{}
	header.Set("X-Node-Address", c.agent.identity.Address.String())
	header.Set("X-Public-Key", c.agent.identity.PublicKeyHex())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	joinMsg := protocol.JoinMessage{
		Type:      protocol.MsgTypeJoin,
		NodeAddr:  c.agent.identity.Address.String(),
		PublicKey: c.agent.identity.PublicKeyHex(),
		Clouds:    c.agent.config.Clouds,
		Endpoints: []string{fmt.Sprintf(":%d", portOf(c.agent.config.ListenAddr))},
		Platform:  "linux",
		Version:   "0.1.0",
	}
	if err := c.sendJSON(joinMsg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	c.log.Info("connected to controller", "clouds", c.agent.config.Clouds)
	return nil
}

func portOf(listenAddr string) int {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 0
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port
}

func (c *ControllerClient) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var baseMsg protocol.Message
		if err := json.Unmarshal(message, &baseMsg); err != nil {
			c.log.Debug("unmarshal message", "err", err)
			continue
		}

		switch baseMsg.Type {
		case protocol.MsgTypeCloudConfig:
			var msg protocol.CloudConfigMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				c.log.Debug("unmarshal cloud config", "err", err)
				continue
			}
			c.handleCloudConfig(&msg)

		case protocol.MsgTypePeerUpdate:
			var msg protocol.PeerUpdateMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				c.log.Debug("unmarshal peer update", "err", err)
				continue
			}
			c.handlePeerUpdate(&msg)

		case protocol.MsgTypeError:
			var msg protocol.ErrorMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				c.log.Warn("controller error", "code", msg.Code, "message", msg.Message)
			}

		default:
			c.log.Debug("unknown message type", "type", baseMsg.Type)
		}
	}
}

// handleCloudConfig applies a cloud's admission token and connects to its
// current bootstrap peer list. The token is taken as authoritative on
// every delivery, since the controller is the source of truth for cloud
// membership.
func (c *ControllerClient) handleCloudConfig(msg *protocol.CloudConfigMessage) {
	c.log.Info("received cloud config",
		"cloud", msg.CloudID,
		"name", msg.Name,
		"peers", len(msg.Peers),
	)

	var token uint64
	fmt.Sscanf(msg.Token, "%x", &token)
	c.agent.config.Token = token

	for _, peerInfo := range msg.Peers {
		c.connectPeerFromInfo(peerInfo)
	}
}

// handlePeerUpdate processes a peer add/remove notification. "remove" is
// not forwarded to the engine: a removed peer is simply left to expire via
// the normal peer-timeout soft state rather than forcibly evicted, since
// the bootstrap channel's view of liveness is advisory, not authoritative.
func (c *ControllerClient) handlePeerUpdate(msg *protocol.PeerUpdateMessage) {
	c.log.Info("peer update", "action", msg.Action, "peer", msg.Peer.Address, "endpoints", msg.Peer.Endpoints)
	if msg.Action == "add" {
		c.connectPeerFromInfo(msg.Peer)
	}
}

func (c *ControllerClient) connectPeerFromInfo(info protocol.PeerInfo) {
	for _, ep := range info.Endpoints {
		resolved, err := net.ResolveUDPAddr("udp", ep)
		if err != nil || resolved.IP == nil {
			continue
		}
		if err := c.agent.sendGetPeers(wire.PeerAddressFromUDP(resolved)); err != nil {
			c.log.Debug("connect to bootstrap peer failed", "peer", info.Address, "err", err)
			continue
		}
		c.log.Info("bootstrap peer contacted", "peer", info.Address, "endpoint", ep)
		return
	}
	c.log.Debug("no reachable endpoint for bootstrap peer", "peer", info.Address, "endpoints", info.Endpoints)
}

// SendStatus sends a status message to the controller, which refreshes the
// node's last-seen time. The message carries no peer entries and no peer
// count.
func (c *ControllerClient) SendStatus() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("not connected")
	}
	c.mu.Unlock()

	return c.sendJSON(protocol.StatusMessage{
		Type: protocol.MsgTypeStatus,
	})
}

func (c *ControllerClient) sendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(controllerWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *ControllerClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
