package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/unicornultrafoundation/meshbridge/internal/agent"
)

var version = "dev"

func main() {
	var (
		identityPath = flag.String("identity", "/etc/meshbridge/identity.key", "path to identity key file")
		listen       = flag.String("listen", "0.0.0.0:9993", "UDP listen address")
		device       = flag.String("device", "mesh0", "TAP device name")
		deviceIP     = flag.String("device-ip", "", "IP/mask to assign to the device (e.g., 10.147.17.1/24)")
		mtu          = flag.Int("mtu", 1500, "TAP device MTU")
		tokenHex     = flag.String("token", "", "admission token (hex, 16 chars / 64 bits)")
		peers        = flag.String("peer", "", "static peer(s): host:port,host:port")
		macTimeout   = flag.Duration("mac-timeout", 5*time.Minute, "MAC table entry timeout")
		peerTimeout  = flag.Duration("peer-timeout", 10*time.Minute, "peer soft-state timeout")
		controller   = flag.String("controller", "", "controller URL (ws://host:port)")
		cloud        = flag.String("cloud", "", "cloud ID to join via controller")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
		showVersion  = flag.Bool("version", false, "show version and exit")
		showIdentity = flag.Bool("show-identity", false, "show identity and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("meshbridge-node %s\n", version)
		os.Exit(0)
	}

	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var token uint64
	if *tokenHex != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(*tokenHex, "0x"))
		if err != nil || len(b) != 8 {
			log.Error("invalid token: must be 16 hex characters (8 bytes)")
			os.Exit(1)
		}
		for _, c := range b {
			token = token<<8 | uint64(c)
		}
	}

	cfg := agent.Config{
		IdentityPath:  *identityPath,
		ListenAddr:    *listen,
		Token:         token,
		DeviceName:    *device,
		DeviceIPv4:    *deviceIP,
		DeviceMTU:     *mtu,
		MacTimeout:    *macTimeout,
		PeerTimeout:   *peerTimeout,
		ControllerURL: *controller,
		LogLevel:      *logLevel,
	}
	if *cloud != "" {
		cfg.Clouds = []string{*cloud}
	}

	if *peers != "" {
		for _, p := range strings.Split(*peers, ",") {
			cfg.StaticPeers = append(cfg.StaticPeers, agent.StaticPeer{Address: p})
		}
	}

	a, err := agent.New(cfg, log)
	if err != nil {
		log.Error("create node failed", "err", err)
		os.Exit(1)
	}

	if *showIdentity {
		fmt.Printf("Address:    %s\n", a.Identity().Address)
		fmt.Printf("Public Key: %s\n", a.Identity().PublicKeyHex())
		os.Exit(0)
	}

	if err := a.Start(); err != nil {
		log.Error("start node failed", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig)

	a.Stop()
}
