package protocol

const (
	// DefaultNodePort is the default UDP port the core bridge listens on.
	DefaultNodePort = 9993
	// DefaultControllerPort is the default admin controller API port.
	DefaultControllerPort = 9394
	// DefaultSTUNPort is the default STUN/TURN port used for bootstrap.
	DefaultSTUNPort = 3478

	// DefaultMTU is the default virtual device MTU.
	DefaultMTU = 1500

	// ProtocolVersion is the current control-plane protocol version.
	ProtocolVersion = 1
)
