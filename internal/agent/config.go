package agent

import "time"

// StaticPeer is a peer configured directly in the node's config file,
// bypassing controller-driven bootstrap.
type StaticPeer struct {
	Address string `yaml:"address"` // host:port
}

// Config holds the node runtime configuration.
type Config struct {
	IdentityPath string

	ListenAddr string // e.g. "0.0.0.0:9993"
	Token      uint64 // admission token shared by all members of the cloud

	DeviceName string // desired TAP device name (e.g. "mesh0")
	DeviceMTU  int
	DeviceIPv4 string // IP/mask to assign (e.g. "10.147.17.1/24")

	MacTimeout  time.Duration
	PeerTimeout time.Duration

	StaticPeers []StaticPeer

	// Controller-driven bootstrap (optional).
	ControllerURL string
	Clouds        []string

	LogLevel string
}
