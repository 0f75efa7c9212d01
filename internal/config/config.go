package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the configuration for cmd/meshbridge-node.
type NodeConfig struct {
	Device       string        `yaml:"device"`
	Listen       string        `yaml:"listen"`
	Token        uint64        `yaml:"token"`
	MacTimeout   time.Duration `yaml:"mac_timeout"`
	PeerTimeout  time.Duration `yaml:"peer_timeout"`
	IdentityPath string        `yaml:"identity_path"`
	StaticPeers  []string      `yaml:"static_peers"`
	STUNServers  []string      `yaml:"stun_servers"`
	Controller   string        `yaml:"controller"`
	Cloud        string        `yaml:"cloud"`
	LogLevel     string        `yaml:"log_level"`
}

// ControllerConfig is the configuration for cmd/meshbridge-controller.
type ControllerConfig struct {
	Listen    string      `yaml:"listen"`
	Database  string      `yaml:"database"`
	JWTSecret string      `yaml:"jwt_secret"`
	STUN      STUNConfig  `yaml:"stun"`
	TURN      TURNConfig  `yaml:"turn"`
	Admin     AdminConfig `yaml:"admin"`
	LogLevel  string      `yaml:"log_level"`
}

// STUNConfig configures the built-in STUN server used for NAT discovery.
type STUNConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// TURNConfig configures the built-in TURN relay server.
type TURNConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Listen      string            `yaml:"listen"`
	Realm       string            `yaml:"realm"`
	Credentials map[string]string `yaml:"credentials"`
}

// AdminConfig is the default admin account created on first run.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DefaultNodeConfig returns a config with sensible defaults.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		Device:       "mesh0",
		Listen:       "0.0.0.0:9993",
		MacTimeout:   5 * time.Minute,
		PeerTimeout:  10 * time.Minute,
		IdentityPath: "/etc/meshbridge/identity.key",
		STUNServers: []string{
			"stun:stun.l.google.com:19302",
		},
		LogLevel: "info",
	}
}

// DefaultControllerConfig returns a config with sensible defaults.
func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		Listen:    "0.0.0.0:9394",
		Database:  "sqlite:///var/lib/meshbridge/controller.db",
		JWTSecret: "change-me-in-production",
		STUN: STUNConfig{
			Enabled: true,
			Listen:  "0.0.0.0:3478",
		},
		TURN: TURNConfig{
			Enabled: false,
			Listen:  "0.0.0.0:3478",
			Realm:   "meshbridge",
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin",
		},
		LogLevel: "info",
	}
}

// LoadNodeConfig loads node config from a YAML file.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load node config: %w", err)
	}
	return cfg, nil
}

// LoadControllerConfig loads controller config from a YAML file.
func LoadControllerConfig(path string) (*ControllerConfig, error) {
	cfg := DefaultControllerConfig()
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load controller config: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
