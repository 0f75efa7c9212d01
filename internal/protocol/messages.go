// Package protocol defines the control-plane messages exchanged between a
// node and the admin controller over the bootstrap WebSocket channel, and
// the REST API request/response bodies. None of this is part of the core
// wire codec (see internal/wire) — it exists only to distribute admission
// tokens and bootstrap peer lists before the core event loop takes over.
package protocol

import "time"

// MessageType identifies the control-plane message type.
type MessageType string

const (
	// Node → Controller
	MsgTypeJoin  MessageType = "join"
	MsgTypeStatus MessageType = "status"
	MsgTypeLeave MessageType = "leave"

	// Controller → Node
	MsgTypeCloudConfig MessageType = "cloud_config"
	MsgTypePeerUpdate  MessageType = "peer_update"
	MsgTypeError       MessageType = "error"
)

// Message is the base control-plane envelope; concrete messages embed it.
type Message struct {
	Type MessageType `json:"type"`
}

// JoinMessage is sent by a node to join a cloud's bootstrap channel.
type JoinMessage struct {
	Type      MessageType `json:"type"`
	NodeAddr  string      `json:"node_addr"`
	PublicKey string      `json:"public_key"`
	Clouds    []string    `json:"clouds"`
	Endpoints []string    `json:"endpoints"` // public-facing UDP candidates
	Platform  string      `json:"platform"`
	Version   string      `json:"version"`
}

// StatusMessage is sent by a node to report peer health. The controller
// uses it only to refresh the node's last-seen time.
type StatusMessage struct {
	Type  MessageType  `json:"type"`
	Peers []PeerStatus `json:"peers"`
}

// PeerStatus reports connection status with one peer.
type PeerStatus struct {
	Address   string `json:"address"`
	LatencyMs int64  `json:"latency_ms"`
	Path      string `json:"path"` // "direct" or "relay"
	BytesSent int64  `json:"bytes_sent"`
	BytesRecv int64  `json:"bytes_recv"`
}

// LeaveMessage is sent when a node leaves one or more clouds.
type LeaveMessage struct {
	Type   MessageType `json:"type"`
	Clouds []string    `json:"clouds"`
}

// CloudConfigMessage carries the admission token and bootstrap peer list
// for one cloud. It is delivered over the controller channel, not the
// core wire protocol; the admission token is opaque to the controller
// beyond storing and forwarding it.
type CloudConfigMessage struct {
	Type    MessageType `json:"type"`
	CloudID string      `json:"cloud_id"`
	Name    string      `json:"name"`
	MTU     int         `json:"mtu"`
	Token   string      `json:"token"` // hex-encoded 64-bit admission token
	Peers   []PeerInfo  `json:"peers"`
}

// PeerInfo is a bootstrap candidate for a cloud member.
type PeerInfo struct {
	Address   string   `json:"address"` // identity.Address, hex
	Endpoints []string `json:"endpoints"`
	Name      string   `json:"name,omitempty"`
}

// PeerUpdateMessage is sent when a member joins or leaves a cloud.
type PeerUpdateMessage struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"` // "add" or "remove"
	Peer   PeerInfo    `json:"peer"`
}

// ErrorMessage reports a control-plane error from the controller.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
}

// --- REST API types ---

// Cloud represents a virtual Ethernet segment in API responses. Token is
// never included in list responses; it is returned once on creation and
// otherwise only delivered over the bootstrap channel to authorized
// members.
type Cloud struct {
	ID          uint32    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	MTU         int       `json:"mtu"`
	MemberCount int       `json:"member_count,omitempty"`
	OnlineCount int       `json:"online_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCloudRequest is the request body for creating a cloud.
type CreateCloudRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	MTU         int    `json:"mtu"`
}

// CreateCloudResponse returns the newly generated admission token once;
// it is never retrievable again through the API.
type CreateCloudResponse struct {
	Cloud Cloud  `json:"cloud"`
	Token string `json:"token"`
}

// Member represents a cloud member in API responses.
type Member struct {
	CloudID     uint32    `json:"cloud_id"`
	NodeAddress string    `json:"node_address"`
	Authorized  bool      `json:"authorized"`
	Name        string    `json:"name,omitempty"`
	Online      bool      `json:"online"`
	Platform    string    `json:"platform,omitempty"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthorizeMemberRequest is the request body for authorizing a member.
type AuthorizeMemberRequest struct {
	NodeAddress string `json:"node_address" binding:"required"`
	Authorized  bool   `json:"authorized"`
	Name        string `json:"name"`
}

// LoginRequest is the request body for authentication.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse contains the JWT token after successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
