// Package tapdevice provides the virtual Ethernet device the engine
// reads frames from and injects frames into: a TAP interface backed by
// github.com/songgao/water, exposing only the minimal surface the core
// switching engine consumes.
package tapdevice

import "net"

// Device is the external collaborator the engine drives: a byte channel
// that reads and writes exactly one Ethernet frame per call, plus a raw
// handle for readiness polling and a name for logging.
type Device interface {
	// Read reads exactly one Ethernet frame into buf; no partial frames.
	Read(buf []byte) (int, error)
	// Write writes exactly one Ethernet frame; a partial write is an error.
	Write(buf []byte) (int, error)
	// Name returns the OS interface name, for logging only.
	Name() string
	// Fd returns the raw file descriptor for readiness polling.
	Fd() int
	// Close releases the device.
	Close() error
}

// Configurator is implemented by devices that can be brought up with an
// MTU, MAC address and IP address before the event loop starts. Not every
// Device needs to satisfy it (a test fake need not).
type Configurator interface {
	SetMTU(mtu int) error
	SetMACAddress(mac net.HardwareAddr) error
	AddIPAddress(ip net.IP, mask net.IPMask) error
	SetUp() error
}
