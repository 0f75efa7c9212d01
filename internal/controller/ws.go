package controller

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/unicornultrafoundation/meshbridge/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // allow all origins in MVP
}

// NodeConn represents a node connected on the bootstrap channel.
type NodeConn struct {
	NodeAddr  string
	PublicKey string
	Platform  string
	Endpoints []string
	Clouds    []string
	Conn      *websocket.Conn
	LastSeen  time.Time
	mu        sync.Mutex
}

// SendJSON sends a JSON message to the node.
func (nc *NodeConn) SendJSON(v interface{}) error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return nc.Conn.WriteJSON(v)
}

// WSHandler manages bootstrap WebSocket connections from nodes. This
// channel distributes admission tokens and bootstrap peer lists only; it
// never carries core wire-protocol datagrams.
type WSHandler struct {
	nodes map[string]*NodeConn // nodeAddr → connection
	mu    sync.RWMutex
	ctrl  *Controller
	log   *slog.Logger
}

// NewWSHandler creates a new bootstrap WebSocket handler.
func NewWSHandler(ctrl *Controller, log *slog.Logger) *WSHandler {
	return &WSHandler{
		nodes: make(map[string]*NodeConn),
		ctrl:  ctrl,
		log:   log.With("component", "ws"),
	}
}

// HandleNodeConnect handles the node bootstrap WebSocket endpoint.
func (h *WSHandler) HandleNodeConnect(c *gin.Context) {
	nodeAddr := c.GetHeader("X-Node-Address")
	publicKey := c.GetHeader("X-Public-Key")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	node := &NodeConn{
		NodeAddr:  nodeAddr,
		PublicKey: publicKey,
		Conn:      conn,
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	if old, exists := h.nodes[nodeAddr]; exists {
		old.Conn.Close()
	}
	h.nodes[nodeAddr] = node
	h.mu.Unlock()

	h.log.Info("node connected", "addr", nodeAddr, "remote", c.Request.RemoteAddr)

	defer func() {
		h.mu.Lock()
		delete(h.nodes, nodeAddr)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("node disconnected", "addr", nodeAddr)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("node websocket error", "addr", nodeAddr, "err", err)
			}
			return
		}

		node.LastSeen = time.Now()
		h.handleMessage(node, message)
	}
}

func (h *WSHandler) handleMessage(node *NodeConn, message []byte) {
	var baseMsg protocol.Message
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		h.log.Debug("unmarshal node message", "err", err)
		return
	}

	switch baseMsg.Type {
	case protocol.MsgTypeJoin:
		var msg protocol.JoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		h.handleJoin(node, &msg)

	case protocol.MsgTypeStatus:
		var msg protocol.StatusMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		h.handleStatus(node, &msg)

	case protocol.MsgTypeLeave:
		var msg protocol.LeaveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		h.handleLeave(node, &msg)

	default:
		h.log.Debug("unknown message type from node", "type", baseMsg.Type, "addr", node.NodeAddr)
	}
}

func (h *WSHandler) handleJoin(node *NodeConn, msg *protocol.JoinMessage) {
	h.log.Info("node join request",
		"addr", msg.NodeAddr,
		"clouds", msg.Clouds,
		"platform", msg.Platform,
	)

	node.Platform = msg.Platform
	node.Endpoints = msg.Endpoints
	node.Clouds = msg.Clouds

	dbNode := Node{
		Address:   msg.NodeAddr,
		PublicKey: msg.PublicKey,
		Platform:  msg.Platform,
		LastSeen:  time.Now(),
	}
	h.ctrl.db.Where("address = ?", msg.NodeAddr).Assign(dbNode).FirstOrCreate(&dbNode)

	for _, cloudID := range msg.Clouds {
		h.sendCloudConfig(node, cloudID)
	}
}

func (h *WSHandler) handleStatus(node *NodeConn, msg *protocol.StatusMessage) {
	h.ctrl.db.Model(&Node{}).Where("address = ?", node.NodeAddr).Update("last_seen", time.Now())
}

func (h *WSHandler) handleLeave(node *NodeConn, msg *protocol.LeaveMessage) {
	h.log.Info("node leaving clouds", "addr", node.NodeAddr, "clouds", msg.Clouds)
	for _, cloudID := range msg.Clouds {
		for i, c := range node.Clouds {
			if c == cloudID {
				node.Clouds = append(node.Clouds[:i], node.Clouds[i+1:]...)
				break
			}
		}
	}
}

func (h *WSHandler) sendCloudConfig(node *NodeConn, cloudID string) {
	var cloud Cloud
	if err := h.ctrl.db.First(&cloud, "id = ?", cloudID).Error; err != nil {
		node.SendJSON(protocol.ErrorMessage{
			Type:    protocol.MsgTypeError,
			Code:    404,
			Message: "cloud not found",
		})
		return
	}

	var member Member
	if err := h.ctrl.db.First(&member, "cloud_id = ? AND node_address = ?", cloudID, node.NodeAddr).Error; err != nil {
		member = Member{
			CloudID:     cloud.ID,
			NodeAddress: node.NodeAddr,
			Authorized:  false,
		}
		h.ctrl.db.Create(&member)
		h.log.Info("new member pending authorization", "cloud", cloudID, "node", node.NodeAddr)
	}

	if !member.Authorized {
		node.SendJSON(protocol.ErrorMessage{
			Type:    protocol.MsgTypeError,
			Code:    403,
			Message: "not authorized for this cloud",
		})
		return
	}

	node.SendJSON(h.buildCloudConfig(cloud))
}

func (h *WSHandler) buildCloudConfig(cloud Cloud) protocol.CloudConfigMessage {
	var members []Member
	h.ctrl.db.Where("cloud_id = ? AND authorized = ?", cloud.ID, true).Find(&members)

	peers := make([]protocol.PeerInfo, 0, len(members))
	for _, m := range members {
		h.mu.RLock()
		peerConn, online := h.nodes[m.NodeAddress]
		h.mu.RUnlock()

		var endpoints []string
		if online {
			endpoints = peerConn.Endpoints
		}

		peers = append(peers, protocol.PeerInfo{
			Address:   m.NodeAddress,
			Endpoints: endpoints,
			Name:      m.Name,
		})
	}

	return protocol.CloudConfigMessage{
		Type:    protocol.MsgTypeCloudConfig,
		CloudID: fmt.Sprintf("%d", cloud.ID),
		Name:    cloud.Name,
		MTU:     cloud.MTU,
		Token:   cloud.Token,
		Peers:   peers,
	}
}

// SendCloudConfigToNode pushes cloud's token and bootstrap peer list to a
// specific online node, if connected.
func (h *WSHandler) SendCloudConfigToNode(nodeAddr string, cloud Cloud) {
	h.mu.RLock()
	node, ok := h.nodes[nodeAddr]
	h.mu.RUnlock()
	if !ok {
		return // node not online
	}
	node.SendJSON(h.buildCloudConfig(cloud))
}

// BroadcastPeerUpdate notifies all nodes subscribed to a cloud about a
// membership change.
func (h *WSHandler) BroadcastPeerUpdate(cloudID uint32, action string, peer protocol.PeerInfo) {
	msg := protocol.PeerUpdateMessage{
		Type:   protocol.MsgTypePeerUpdate,
		Action: action,
		Peer:   peer,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	want := fmt.Sprintf("%d", cloudID)
	for _, node := range h.nodes {
		for _, c := range node.Clouds {
			if c == want {
				node.SendJSON(msg)
				break
			}
		}
	}
}

// GetOnlineNodes returns the set of currently connected node addresses.
func (h *WSHandler) GetOnlineNodes() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	online := make(map[string]bool, len(h.nodes))
	for addr := range h.nodes {
		online[addr] = true
	}
	return online
}
